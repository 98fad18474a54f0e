package iterator

// Iterator is a one-pass, forward-only sequence.
// Next returns false at the end or on failure; Err tells the two apart.
type Iterator[V any] interface {
	Next() bool
	Entry() V
	Err() error
	Close() error
}
