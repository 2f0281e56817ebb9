package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/chocosentinel/internal/clients"
)

func TestHandleIngestNow_RejectsUnknownSource(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/ingest/now", []byte(`{"source":"carrier_pigeon"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleIngestNow_DispatchesPriceSource(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.priceSource = &fakePriceSource{records: []clients.RawRecord{
		{Time: time.Now().Add(-30 * time.Minute), Fields: map[string]float64{"price_eur_mwh": 180}},
	}}
	w := doRequest(t, srv, http.MethodPost, "/ingest/now", []byte(`{"source":"price"}`))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleIngestNow_RejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/ingest/now", []byte(`{not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
