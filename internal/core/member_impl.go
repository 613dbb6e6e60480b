package core

// memberSession implements MemberSession over an adapter-owned connection.
type memberSession struct {
	conn SignalConnection
}

func NewMemberSession(conn SignalConnection) MemberSession {
	return &memberSession{conn: conn}
}

func (m *memberSession) Conn() SignalConnection { return m.conn }
