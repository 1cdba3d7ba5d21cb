package request

type Register struct {
	Email    string `json:"email"    validate:"required,email"`
	FullName string `json:"fullName" validate:"required,min=1,max=255"`
	Password string `json:"password" validate:"required,min=8"`
}

type Login struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
