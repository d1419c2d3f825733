package verdict

// Summary counts statuses across a set of verdicts.
type Summary struct {
	Pass    int `json:"pass"`
	Grace   int `json:"grace"`
	Fail    int `json:"fail"`
	Pending int `json:"pending"`
	Total   int `json:"total"`
}

// Kept is the number of windows where the commitment held.
func (s Summary) Kept() int {
	return s.Pass + s.Grace
}

// Summarize tallies verdicts.
func Summarize(verdicts []Verdict) Summary {
	var s Summary
	for _, v := range verdicts {
		switch v.Status {
		case StatusPass:
			s.Pass++
		case StatusGrace:
			s.Grace++
		case StatusFail:
			s.Fail++
		case StatusPending:
			s.Pending++
		default:
			continue
		}
		s.Total++
	}
	return s
}
