package turn

import "sync"

// TodoStatus is the lifecycle state of one TodoList item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoCancelled  TodoStatus = "cancelled"
)

// TodoItem is one entry in a TodoList.
type TodoItem struct {
	Content    string     `json:"content"`
	Status     TodoStatus `json:"status"`
	ActiveForm string     `json:"active_form,omitempty"`
}

// TodoList is an ordered, shared task list. A composite session's primary
// and co-agent hold a reference to the same TodoList, so a write by
// either side is immediately visible to the other.
type TodoList struct {
	mu    sync.Mutex
	items []TodoItem
}

// NewTodoList returns an empty shared list.
func NewTodoList() *TodoList {
	return &TodoList{}
}

// Replace overwrites the entire list, as the todo_write tool does.
func (l *TodoList) Replace(items []TodoItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append([]TodoItem(nil), items...)
}

// Items returns a copy of the current list.
func (l *TodoList) Items() []TodoItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]TodoItem(nil), l.items...)
}
