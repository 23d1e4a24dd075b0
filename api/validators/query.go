package validators

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront/internal/backend"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/pagination"
	"github.com/angelmondragon/storefront/pkg/types"
)

const (
	querySort  = "_sort"
	queryOrder = "_order"
	queryPage  = "_page"
	queryLimit = "_limit"
)

// ParseProductFilter reads repeated filter params plus _sort/_order and
// _page/_limit. ok is false when the request carries no query at all, which
// selects the plain listing.
func ParseProductFilter(r *http.Request) (filter backend.ProductFilter, ok bool, err error) {
	values := r.URL.Query()
	if len(values) == 0 {
		return backend.ProductFilter{}, false, nil
	}

	page, err := pagination.Parse(values.Get(queryPage), values.Get(queryLimit))
	if err != nil {
		return backend.ProductFilter{}, true, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pagination").
			WithDetails(map[string]string{queryPage: "must be a positive integer", queryLimit: "must be a positive integer"})
	}
	if page.Limit > 0 && !page.Enabled() {
		page.Page = 1
	}

	filter = backend.ProductFilter{
		Filter: map[string][]string{},
		Sort: types.Sort{
			Field: SanitizeString(values.Get(querySort), 64),
			Order: strings.ToLower(SanitizeString(values.Get(queryOrder), 8)),
		},
		Page: page,
	}
	for key, vals := range values {
		if strings.HasPrefix(key, "_") {
			continue
		}
		filter.Filter[key] = append([]string(nil), vals...)
	}
	return filter, true, nil
}
