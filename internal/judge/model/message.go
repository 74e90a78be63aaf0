package model

// JudgeMessage is the Kafka payload that asks a worker to grade a submission.
type JudgeMessage struct {
	SubmissionID int64  `json:"submission_id"`
	ProblemID    int64  `json:"problem_id"`
	UserID       int64  `json:"user_id"`
	Language     string `json:"language"`
}
