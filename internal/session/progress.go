package session

// Progress is reported once per applied class.
type Progress struct {
	// Index is the class's position in the materialization order.
	Index   int
	Total   int
	Class   string
	Applied int
}

// ProgressFunc receives progress updates on the importing goroutine.
type ProgressFunc func(Progress)

// ChannelProgress sends updates to ch. Updates are dropped while ch is full
// so a slow reader never stalls the import.
func ChannelProgress(ch chan<- Progress) ProgressFunc {
	return func(p Progress) {
		select {
		case ch <- p:
		default:
		}
	}
}

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}
