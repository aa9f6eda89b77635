package odoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilepoint/comparator-stoc-api/internal/models"
	"github.com/mobilepoint/comparator-stoc-api/internal/reconcile"
)

func xmlResponse(value string) string {
	return `<?xml version="1.0"?><methodResponse><params><param><value>` + value + `</value></param></params></methodResponse>`
}

func xmlRecords(records ...string) string {
	var b strings.Builder
	b.WriteString("<array><data>")
	for _, r := range records {
		b.WriteString("<value><struct>" + r + "</struct></value>")
	}
	b.WriteString("</data></array>")
	return b.String()
}

func member(name, value string) string {
	return fmt.Sprintf("<member><name>%s</name><value>%s</value></member>", name, value)
}

func intVal(n int) string { return fmt.Sprintf("<int>%d</int>", n) }

func strVal(s string) string { return "<string>" + s + "</string>" }

func pairVal(id int, name string) string {
	return "<array><data><value>" + intVal(id) + "</value><value>" + strVal(name) + "</value></data></array>"
}

// fakeOdoo answers the four calls a ledger fetch makes.
func fakeOdoo(t *testing.T, uid int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := string(body)
		w.Header().Set("Content-Type", "text/xml")

		switch {
		case strings.Contains(req, "authenticate"):
			fmt.Fprint(w, xmlResponse(intVal(uid)))
		case strings.Contains(req, "stock.warehouse"):
			fmt.Fprint(w, xmlResponse(xmlRecords(
				member("id", intVal(1))+member("name", strVal("WH"))+member("lot_stock_id", pairVal(8, "WH/Stock")),
			)))
		case strings.Contains(req, "stock.quant"):
			fmt.Fprint(w, xmlResponse(xmlRecords(
				member("id", intVal(1))+member("product_id", pairVal(10, "Alpha"))+member("quantity", "<double>3.5</double>"),
				member("id", intVal(2))+member("product_id", pairVal(10, "Alpha"))+member("quantity", "<double>1.5</double>"),
				member("id", intVal(3))+member("product_id", pairVal(20, "Beta"))+member("quantity", "<double>2</double>"),
			)))
		case strings.Contains(req, "product.product"):
			fmt.Fprint(w, xmlResponse(xmlRecords(
				member("id", intVal(10))+member("default_code", strVal("A1"))+member("name", strVal("Alpha")),
				member("id", intVal(20))+member("default_code", "<boolean>0</boolean>")+member("name", strVal("Beta")),
			)))
		default:
			t.Errorf("unexpected call: %s", req)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

func newTestSource(t *testing.T, url string) *LedgerSource {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	src, err := NewLedgerSource(Config{
		URL:           url,
		Database:      "db",
		Username:      "admin",
		Password:      "secret",
		WarehouseName: "WH",
		Timeout:       5 * time.Second,
	}, log)
	require.NoError(t, err)
	return src
}

func TestFetchLedger(t *testing.T) {
	srv := fakeOdoo(t, 7)
	defer srv.Close()

	src := newTestSource(t, srv.URL)
	entries, err := src.FetchLedger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.LedgerEntry{{Code: "A1", Name: "Alpha", Quantity: 5}}, entries)
	assert.Equal(t, 7, src.client.Uid)
}

func TestFetchLedgerRejectedCredentials(t *testing.T) {
	srv := fakeOdoo(t, 0)
	defer srv.Close()

	_, err := newTestSource(t, srv.URL).FetchLedger(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrLedgerUnreachable)
}

func TestFetchLedgerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestSource(t, url).FetchLedger(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrLedgerUnreachable)
}
