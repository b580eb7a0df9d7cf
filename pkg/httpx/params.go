package httpx

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// HeaderTotalCount — полный размер коллекции до нарезки.
const HeaderTotalCount = "X-Total-Count"

// Page — окно выдачи списка.
type Page struct {
	Limit  int
	Offset int
}

// ParsePage — limit/offset из query: limit в [1..maxLimit], кривые значения дают дефолты.
func ParsePage(c *gin.Context, defaultLimit, maxLimit int) Page {
	p := Page{Limit: clamp(defaultLimit, 1, maxLimit)}
	if raw, ok := c.GetQuery("limit"); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			p.Limit = clamp(v, 1, maxLimit)
		}
	}
	if raw, ok := c.GetQuery("offset"); ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.Offset = v
		}
	}
	return p
}

// Paginate — срез items по странице и заголовок X-Total-Count.
// Смещение за концом даёт пустой (не nil) срез.
func Paginate[T any](c *gin.Context, items []T, p Page) []T {
	total := len(items)
	c.Header(HeaderTotalCount, strconv.Itoa(total))

	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	out := items[start:end]
	if out == nil {
		out = []T{}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
