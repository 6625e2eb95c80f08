package models

// FormHeader is the form document itself. Its questions live in their own
// collection under the form's partition.
type FormHeader struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	PhoneInput            bool   `json:"phoneInput"`
	NationalityInput      bool   `json:"nationalityInput"`
	CurrentResidenceInput bool   `json:"currentResidenceInput"`
	IDNumberInput         bool   `json:"idNumberInput"`
	DateOfBirthInput      bool   `json:"dateOfBirthInput"`
	GenderInput           bool   `json:"genderInput"`
	CreatedAt             string `json:"createdAt"`
}

// Form is a header together with its current questions.
type Form struct {
	FormHeader
	Questions []Question `json:"questions"`

	// ETag is the header document's version, used for If-Match on update.
	ETag string `json:"-"`
}

// Question belongs to exactly one form. Retired questions keep IsActive=false
// and are never reactivated.
type Question struct {
	ID                 string   `json:"id"`
	FormID             string   `json:"formId"`
	Type               string   `json:"type"`
	Content            string   `json:"content"`
	Choices            []string `json:"choices"`
	AllowMultiple      bool     `json:"allowMultiple"`
	IncludeOtherOption bool     `json:"includeOtherOption"`
	IsActive           bool     `json:"isActive"`
	Position           int      `json:"position"`
}

// QuestionInput is a question as supplied by a caller, before ids are minted.
type QuestionInput struct {
	Type               string   `json:"type" validate:"required,max=64"`
	Content            string   `json:"content" validate:"required"`
	Choices            []string `json:"choices"`
	AllowMultiple      bool     `json:"allowMultiple"`
	IncludeOtherOption bool     `json:"includeOtherOption"`
}

// QuestionType is one entry of the static type catalog.
type QuestionType struct {
	ID       string `json:"id"`
	TypeName string `json:"typeName"`
}
