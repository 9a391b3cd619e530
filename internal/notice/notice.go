package notice

import "sync"

// Kind tells the front-end how to present a notice.
type Kind string

const (
	// KindInfo is dismissable and does not block navigation.
	KindInfo Kind = "info"
	// KindBlocking gates the feature it is about until acknowledged.
	KindBlocking Kind = "blocking"
	// KindConfirm asks the user a yes/no question.
	KindConfirm Kind = "confirm"
)

// Notice is a user-facing message produced by a view.
type Notice struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives notices as they are produced.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Notifier = NotifierFunc(func(Notice) {})

// Queue buffers notices for a view until the front-end collects them.
type Queue struct {
	mu    sync.Mutex
	items []Notice
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Notify(n Notice) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
}

// Drain returns the buffered notices in arrival order and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func Info(title, message string) Notice {
	return Notice{Kind: KindInfo, Title: title, Message: message}
}

func Blocking(title, message string) Notice {
	return Notice{Kind: KindBlocking, Title: title, Message: message}
}

func Confirm(title, message string) Notice {
	return Notice{Kind: KindConfirm, Title: title, Message: message}
}
