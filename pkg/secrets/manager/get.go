package manager

import (
	corev1 "k8s.io/api/core/v1"
)

// Get returns a secret the manager knows about under the given config name.
// Without options it returns the CA bundle when one exists (CA configs) and
// the current generation otherwise; Bundle, Current and Old select a
// generation explicitly. found is false when this manager has neither
// generated nor loaded a matching secret.
func (m *Manager) Get(name string, opts ...GetOption) (*corev1.Secret, bool) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[name]
	if !ok {
		return nil, false
	}

	var secret *corev1.Secret
	switch o.class {
	case classBundle:
		secret = e.bundle
	case classCurrent:
		secret = e.current
	case classOld:
		secret = e.old
	default:
		secret = e.bundle
		if secret == nil {
			secret = e.current
		}
	}

	if secret == nil {
		return nil, false
	}
	return secret, true
}
