package syncq

import (
	"container/heap"
)

type scheduleHeap []*maintenanceSchedule

func (s scheduleHeap) Len() int           { return len(s) }
func (s scheduleHeap) Less(i, j int) bool { return s[i].nextRunAt.Before(s[j].nextRunAt) }
func (s scheduleHeap) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func (s *scheduleHeap) Push(x any) {
	// Push and Pop use pointer receivers because they modify the slice's length,
	// not just its contents.
	*s = append(*s, x.(*maintenanceSchedule))
}

func (s *scheduleHeap) Pop() any {
	old := *s
	n := len(old)
	x := old[n-1]
	*s = old[0 : n-1]
	return x
}

var _ JobSchedulerQueue[maintenanceSchedule] = &jobSchedulerQueue{}

type JobSchedulerQueue[T any] interface {
	Push(x *T)
	Pop() *T
	Peek() *T
	Len() int
}

type jobSchedulerQueue struct {
	schedules *scheduleHeap
}

func NewJobSchedulerQueue() JobSchedulerQueue[maintenanceSchedule] {
	schedules := &scheduleHeap{}
	heap.Init(schedules)
	return &jobSchedulerQueue{
		schedules: schedules,
	}
}

func (j *jobSchedulerQueue) Push(x *maintenanceSchedule) {
	heap.Push(j.schedules, x)
}

func (j *jobSchedulerQueue) Pop() *maintenanceSchedule {
	return heap.Pop(j.schedules).(*maintenanceSchedule)
}

func (j *jobSchedulerQueue) Peek() *maintenanceSchedule {
	return (*j.schedules)[0]
}

func (j *jobSchedulerQueue) Len() int {
	return j.schedules.Len()
}
