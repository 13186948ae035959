package dto

// TimetableQuery filters stored timetables by term, program and status.
type TimetableQuery struct {
	TermID  string `form:"termId" json:"termId"`
	Program string `form:"program" json:"program"`
	Status  string `form:"status" json:"status"`
}
