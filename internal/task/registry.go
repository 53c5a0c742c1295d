// SPDX-License-Identifier: MPL-2.0

package task

// Registry holds tasks by name, remembering definition order.
type Registry struct {
	tasks map[string]*Task
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Add registers t. Names must be unique and must not be AnonymousName.
func (r *Registry) Add(t *Task) error {
	if t.Name == "" || t.Name == AnonymousName {
		return &InvalidInvocationError{Input: t.Name, Reason: "reserved or empty task name"}
	}
	if _, exists := r.tasks[t.Name]; exists {
		return &DuplicateTaskError{Name: t.Name}
	}
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Get returns the task called name.
func (r *Registry) Get(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Lookup is Get returning a NotFoundError.
func (r *Registry) Lookup(name string) (*Task, error) {
	if t, ok := r.tasks[name]; ok {
		return t, nil
	}
	return nil, &NotFoundError{Name: name, Known: r.Names()}
}

// Names returns task names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tasks returns the tasks in definition order.
func (r *Registry) Tasks() []*Task {
	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int { return len(r.order) }
