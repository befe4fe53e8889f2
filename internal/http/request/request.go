// Package request разбирает общие параметры HTTP-запросов.
package request

import (
	"net/http"
	"strconv"

	"github.com/magabrotheeeer/paywall-ledger/internal/models"
)

// Page читает page и limit из query. Некорректные значения заменяются значениями по умолчанию.
func Page(r *http.Request) (int, int) {
	q := r.URL.Query()
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 1
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = models.DefaultPageLimit
	}
	return models.NormalizePage(page, limit)
}
