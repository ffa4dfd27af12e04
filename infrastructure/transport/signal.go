package transport

// Signal is a completion posted by background work of the transport.
type Signal interface {
	generation() uint64
}

type dialed struct {
	gen  uint64
	conn Conn
	err  error
}

type received struct {
	gen  uint64
	data []byte
}

type lost struct {
	gen uint64
	err error
}

type retryDue struct {
	gen uint64
}

func (s dialed) generation() uint64   { return s.gen }
func (s received) generation() uint64 { return s.gen }
func (s lost) generation() uint64     { return s.gen }
func (s retryDue) generation() uint64 { return s.gen }
