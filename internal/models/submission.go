package models

// DateOfBirthLayout is the stored form of Submission.DateOfBirth.
const DateOfBirthLayout = "2006-01-02"

// Submission is one applicant's answers to a form. Responses are keyed by
// whatever question key the client used and are never rewritten when the
// form's questions change.
type Submission struct {
	ID               string              `json:"id"`
	FormID           string              `json:"formId"`
	FirstName        string              `json:"firstName"`
	LastName         string              `json:"lastName"`
	Email            string              `json:"email"`
	Phone            string              `json:"phone,omitempty"`
	Nationality      string              `json:"nationality,omitempty"`
	CurrentResidence string              `json:"currentResidence,omitempty"`
	IDNumber         string              `json:"idNumber,omitempty"`
	DateOfBirth      string              `json:"dateOfBirth,omitempty"`
	Gender           string              `json:"gender,omitempty"`
	Responses        map[string][]string `json:"responses"`
	SubmittedAt      string              `json:"submittedAt"`
}
