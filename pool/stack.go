package pool

// connStack is a LIFO of idle connections. Reusing the most recently returned
// connection keeps the rest of the stack cold. It is not synchronized; the
// Pool guards it with its mutex.
type connStack struct {
	conns []*Conn
}

func (s *connStack) Push(c *Conn) {
	s.conns = append(s.conns, c)
}

func (s *connStack) Pop() (*Conn, bool) {
	n := len(s.conns)
	if n == 0 {
		return nil, false
	}
	c := s.conns[n-1]
	s.conns[n-1] = nil
	s.conns = s.conns[:n-1]
	return c, true
}

func (s *connStack) Len() int {
	return len(s.conns)
}

// Drain empties the stack and returns what it held.
func (s *connStack) Drain() []*Conn {
	out := s.conns
	s.conns = nil
	return out
}
