package scheduler

// Scheduler runs periodic tasks measured in world ticks. Advance is called once
// per world tick from the world goroutine; tasks run on that goroutine.
type Scheduler struct {
	tick  uint64
	tasks []*Task
}

type Task struct {
	name     string
	interval uint64
	next     uint64
	fn       func()

	cancelled bool
	runs      uint64
}

func New() *Scheduler { return &Scheduler{} }

// Submit registers fn to run every intervalTicks ticks, first at the next
// multiple of the interval. Intervals below 1 are treated as 1.
func (s *Scheduler) Submit(name string, intervalTicks int, fn func()) *Task {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	t := &Task{
		name:     name,
		interval: uint64(intervalTicks),
		next:     s.tick + uint64(intervalTicks),
		fn:       fn,
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Advance moves the clock by one tick and runs every due task in submission
// order. Tasks submitted or cancelled by a running task take effect from the
// next tick.
func (s *Scheduler) Advance() {
	s.tick++
	due := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.cancelled && t.next <= s.tick {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if t.cancelled {
			continue
		}
		t.next = s.tick + t.interval
		t.runs++
		if t.fn != nil {
			t.fn()
		}
	}
	s.compact()
}

func (s *Scheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = live
}

func (s *Scheduler) Tick() uint64 { return s.tick }

// Pending reports the number of tasks that have not been cancelled.
func (s *Scheduler) Pending() int {
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Cancel stops the task. Safe to call more than once and on a nil task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.cancelled = true
}

func (t *Task) Name() string    { return t.name }
func (t *Task) Interval() int   { return int(t.interval) }
func (t *Task) Cancelled() bool { return t.cancelled }
func (t *Task) Runs() uint64    { return t.runs }
