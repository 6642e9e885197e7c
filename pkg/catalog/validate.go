package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/entrhq/catalogsync/pkg/types"
)

var itemValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("searchable", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n\t")
	})
	return v
}

// ValidateItem checks a single item.
func ValidateItem(item types.Item) error {
	if err := itemValidator.Struct(item); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// validateItems drops invalid and duplicate items, keeping the first occurrence
// of each ID, and records why.
func validateItems(r *Report) []types.Item {
	seen := make(map[string]bool, len(r.Items))
	out := make([]types.Item, 0, len(r.Items))
	for i, it := range r.Items {
		if err := ValidateItem(it); err != nil {
			r.Issues = append(r.Issues, Issue{Row: i + 1, ItemID: it.ID, Kind: IssueInvalid, Detail: err.Error()})
			continue
		}
		if seen[it.ID] {
			r.Issues = append(r.Issues, Issue{ItemID: it.ID, Kind: IssueDuplicate, Detail: "duplicate ID, first occurrence kept"})
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
