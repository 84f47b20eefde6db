package recipe

import (
	"errors"
	"fmt"
	"strings"

	"recipe-autofind/internal/core/search"
	"recipe-autofind/internal/pkg/common"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator 註冊 nameable：標題正規化後不可為空
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nameable", func(fl validator.FieldLevel) bool {
		return search.Normalize(fl.Field().String()).CanonicalForm != ""
	})
	return v
}

// recipeView 驗證用的欄位視圖
type recipeView struct {
	Title              string   `validate:"required,max=255,nameable"`
	Ingredients        []string `validate:"required,min=1,max=100"`
	Steps              []string `validate:"required,min=1,max=100"`
	CookingTimeMinutes int      `validate:"omitempty,min=1,max=1440"`
	Difficulty         string   `validate:"omitempty,oneof=Easy Medium Hard"`
	History            string   `validate:"max=10000"`
	ImageURL           string   `validate:"max=500"`
}

var fieldMessages = map[string]string{
	"Title.required":         "title is required",
	"Title.max":              "title must be at most 255 characters",
	"Title.nameable":         "title must contain letters or digits",
	"Ingredients.required":   "ingredients are required",
	"Ingredients.min":        "ingredients are required",
	"Ingredients.max":        "ingredients must have at most 100 entries",
	"Steps.required":         "steps are required",
	"Steps.min":              "steps are required",
	"Steps.max":              "steps must have at most 100 entries",
	"CookingTimeMinutes.min": "cooking time must be between 1 and 1440 minutes",
	"CookingTimeMinutes.max": "cooking time must be between 1 and 1440 minutes",
	"Difficulty.oneof":       "difficulty must be one of Easy, Medium, Hard",
	"History.max":            "history must be at most 10000 characters",
	"ImageURL.max":           "image url must be at most 500 characters",
}

// Validate 檢查生成食譜的結構，收集全部錯誤而非遇到第一個就停止
func Validate(candidate *common.GeneratedRecipe) common.ValidationResult {
	if candidate == nil {
		return common.ValidationResult{IsValid: false, Errors: []string{"recipe is missing"}}
	}

	view := recipeView{
		Title:              strings.TrimSpace(candidate.Title),
		Ingredients:        candidate.Ingredients,
		Steps:              candidate.Steps,
		CookingTimeMinutes: candidate.CookingTimeMinutes,
		Difficulty:         string(candidate.Difficulty),
		History:            candidate.HistoryText,
		ImageURL:           candidate.ImageURL,
	}

	err := validate.Struct(view)
	if err == nil {
		return common.ValidationResult{IsValid: true, Errors: []string{}}
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.ValidationResult{IsValid: false, Errors: []string{err.Error()}}
	}

	messages := make([]string, 0, len(verrs))
	seen := make(map[string]bool)
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
		}
		if seen[msg] {
			continue
		}
		seen[msg] = true
		messages = append(messages, msg)
	}
	return common.ValidationResult{IsValid: false, Errors: messages}
}
