package graphql

import (
	graphqlgo "github.com/graph-gophers/graphql-go"

	"github.com/expense-tracker/graphql-api/internal/core/ports"
)

type signUpInput struct {
	Username       string  `json:"username" validate:"required,max=50"`
	Name           string  `json:"name" validate:"required,max=100"`
	Password       string  `json:"password" validate:"required,max=72"`
	Gender         string  `json:"gender" validate:"required,oneof=male female"`
	ProfilePicture *string `json:"profilePicture" validate:"omitempty,url"`
}

func (in signUpInput) toPort() ports.RegisterInput {
	out := ports.RegisterInput{
		Username: in.Username,
		Name:     in.Name,
		Password: in.Password,
		Gender:   in.Gender,
	}
	if in.ProfilePicture != nil {
		out.ProfilePicture = *in.ProfilePicture
	}
	return out
}

type loginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type createTransactionInput struct {
	Description string  `json:"description" validate:"required,max=500"`
	PaymentType string  `json:"paymentType" validate:"required,oneof=cash card"`
	Category    string  `json:"category" validate:"required,oneof=saving expense investment"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date" validate:"required"`
	Location    *string `json:"location" validate:"omitempty,max=200"`
}

func (in createTransactionInput) toPort() ports.CreateTransactionInput {
	return ports.CreateTransactionInput{
		Description: in.Description,
		PaymentType: in.PaymentType,
		Category:    in.Category,
		Amount:      in.Amount,
		Date:        in.Date,
		Location:    in.Location,
	}
}

type updateTransactionInput struct {
	TransactionID graphqlgo.ID `json:"transactionId" validate:"required"`
	Description   *string      `json:"description" validate:"omitempty,max=500"`
	PaymentType   *string      `json:"paymentType" validate:"omitempty,oneof=cash card"`
	Category      *string      `json:"category" validate:"omitempty,oneof=saving expense investment"`
	Amount        *float64     `json:"amount"`
	Location      *string      `json:"location" validate:"omitempty,max=200"`
	Date          *string      `json:"date"`
}

func (in updateTransactionInput) toPort() ports.UpdateTransactionInput {
	return ports.UpdateTransactionInput{
		TransactionID: string(in.TransactionID),
		Description:   in.Description,
		PaymentType:   in.PaymentType,
		Category:      in.Category,
		Amount:        in.Amount,
		Location:      in.Location,
		Date:          in.Date,
	}
}
