package status

//Status represents audio job or evaluation status
type Status int

const (
	// Pending - work is queued or in progress
	Pending Status = iota + 1
	// Done - final step
	Done
	// Failed - final step, no result produced
	Failed
)

var (
	statusName = map[Status]string{Pending: "pending", Done: "done", Failed: "failed"}
	nameStatus = map[string]Status{"pending": Pending, "done": Done, "failed": Failed}
)

// Unknown is reported for missing jobs
const Unknown = "unknown"

func (st Status) String() string {
	if res, ok := statusName[st]; ok {
		return res
	}
	return Unknown
}

// From returns status obj from string
func From(st string) Status {
	return nameStatus[st]
}

// Final reports whether no more work is expected
func (st Status) Final() bool {
	return st == Done || st == Failed
}
