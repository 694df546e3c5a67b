package gen

// Drain empties a buffered channel without blocking, returning whatever was
// queued. Only safe once every writer is done.
func Drain[T any](ch chan T) []T {
	out := make([]T, 0, len(ch))
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
