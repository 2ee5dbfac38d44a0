package jobqueue

type JobQuery struct {
	JobGroup string
	Type     string
	Statuses []JobStatus

	Limit  int
	Offset int

	IncludePayload bool
}

type JobListPage struct {
	Jobs  []Job
	Total int64
}

type Counts struct {
	Total    int64
	ByStatus map[JobStatus]int64
}
