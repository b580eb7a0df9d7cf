//go:build !integration

package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/testutil"
	rest "github.com/Gunvolt24/resto_sync/internal/transport/http"
	"github.com/gin-gonic/gin"
)

// Стоимость полного пайплайна роутера (recovery, request id, otel, access-лог)
// на чтении списка, приёме заказа и служебной статистике.

type benchOrders struct{ list []*domain.Order }

func (s benchOrders) GetOrders(context.Context, string) ([]*domain.Order, error) {
	return s.list, nil
}

func (s benchOrders) PlaceOrder(_ context.Context, o *domain.Order) (*domain.Order, error) {
	return o, nil
}

func (s benchOrders) UpdateOrderStatus(context.Context, string, string, domain.OrderStatus) error {
	return nil
}

type benchMonitor struct{}

func (benchMonitor) State() domain.ConnectionState { return domain.ConnectionState{Online: true} }
func (benchMonitor) SetOnline(bool)                {}
func (benchMonitor) Subscribe(fn func(domain.ConnectionState)) func() {
	fn(domain.ConnectionState{Online: true})
	return func() {}
}

func benchRouter(list []*domain.Order) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := rest.NewHandler(benchOrders{list: list}, nil, benchMonitor{}, nil, noopLogger{}, 0)
	return rest.NewRouter(h, "", "")
}

func serve(b *testing.B, r http.Handler, newReq func() *http.Request, want int) {
	b.Helper()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, newReq())
		if w.Code != want {
			b.Fatalf("status=%d want=%d", w.Code, want)
		}
	}
}

func BenchmarkListOrders(b *testing.B) {
	for _, n := range []int{10, 100, 500} {
		list := make([]*domain.Order, n)
		for i := range list {
			o := testutil.MakeOrder(testutil.WithRestaurant("bench"))
			list[i] = &o
		}
		r := benchRouter(list)
		path := "/api/restaurants/bench/orders?limit=" + strconv.Itoa(n)

		b.Run("N="+strconv.Itoa(n), func(b *testing.B) {
			serve(b, r, func() *http.Request {
				return httptest.NewRequest(http.MethodGet, path, http.NoBody)
			}, http.StatusOK)
		})
	}
}

func BenchmarkPlaceOrder(b *testing.B) {
	o := testutil.MakeOrder(testutil.WithRestaurant("bench"))
	body, err := json.Marshal(o)
	if err != nil {
		b.Fatal(err)
	}
	r := benchRouter(nil)

	serve(b, r, func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/restaurants/bench/orders", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}, http.StatusCreated)
}

func BenchmarkNotFound(b *testing.B) {
	r := benchRouter(nil)
	serve(b, r, func() *http.Request {
		return httptest.NewRequest(http.MethodGet, "/nope", http.NoBody)
	}, http.StatusNotFound)
}
