package request

type InsertReview struct {
	Rating  int32  `json:"rating"  validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
