package testutil

// Ping is a request payload carrying a counter.
type Ping struct{ N int }

// Pong is the reply to a Ping.
type Pong struct{ N int }

// Note is a fire-and-forget payload.
type Note struct{ Text string }
