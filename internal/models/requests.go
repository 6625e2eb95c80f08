package models

// CreateUpdateFormRequest is the body of POST /api/forms and PUT /api/forms/{id}.
type CreateUpdateFormRequest struct {
	Title                 string          `json:"title" validate:"required,max=200"`
	Description           string          `json:"description" validate:"max=2000"`
	PhoneInput            bool            `json:"phoneInput"`
	NationalityInput      bool            `json:"nationalityInput"`
	CurrentResidenceInput bool            `json:"currentResidenceInput"`
	IDNumberInput         bool            `json:"idNumberInput"`
	DateOfBirthInput      bool            `json:"dateOfBirthInput"`
	GenderInput           bool            `json:"genderInput"`
	Questions             []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// Header returns the request's header fields; the id and timestamp are left
// for the repository to mint.
func (r *CreateUpdateFormRequest) Header() FormHeader {
	return FormHeader{
		Title:                 r.Title,
		Description:           r.Description,
		PhoneInput:            r.PhoneInput,
		NationalityInput:      r.NationalityInput,
		CurrentResidenceInput: r.CurrentResidenceInput,
		IDNumberInput:         r.IDNumberInput,
		DateOfBirthInput:      r.DateOfBirthInput,
		GenderInput:           r.GenderInput,
	}
}

// SubmissionRequest is the body of POST /api/submissions.
type SubmissionRequest struct {
	FormID           string              `json:"formId" validate:"required"`
	FirstName        string              `json:"firstName" validate:"required"`
	LastName         string              `json:"lastName" validate:"required"`
	Email            string              `json:"email" validate:"required,email"`
	Phone            string              `json:"phone"`
	Nationality      string              `json:"nationality"`
	CurrentResidence string              `json:"currentResidence"`
	IDNumber         string              `json:"idNumber"`
	DateOfBirth      string              `json:"dateOfBirth" validate:"omitempty,isoDate"`
	Gender           string              `json:"gender"`
	Responses        map[string][]string `json:"responses"`
}
