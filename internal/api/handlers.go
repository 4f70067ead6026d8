package api

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/terra-sync/internal/chain"
	"github.com/emperorhan/terra-sync/internal/chain/evm"
	"github.com/emperorhan/terra-sync/internal/domain/model"
	"github.com/emperorhan/terra-sync/internal/geo"
	"github.com/emperorhan/terra-sync/internal/health"
	"github.com/emperorhan/terra-sync/internal/market"
	"github.com/emperorhan/terra-sync/internal/mirror"
	"github.com/emperorhan/terra-sync/internal/syncer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

const (
	maxTerrainLen = 64
	maxCrops      = 16
	maxCropLen    = 64

	healthTimeout = 2 * time.Second

	genericRevertReason = "transaction would revert"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	resp := map[string]any{"status": "ok"}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health.PingContext(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			code = http.StatusServiceUnavailable
			resp["store"] = "unreachable"
		}
	}

	if len(s.trackers) > 0 {
		components := make([]health.Snapshot, 0, len(s.trackers))
		for _, t := range s.trackers {
			snap := t.Snapshot()
			if snap.Status == health.StatusUnhealthy {
				code = http.StatusServiceUnavailable
			}
			components = append(components, snap)
		}
		resp["components"] = components
	}

	if snap := s.snapshots.Snapshot(); snap != nil {
		resp["parcels"] = len(snap.Terras)
		resp["refreshed_at"] = snap.RefreshedAt.UTC().Format(time.RFC3339)
	}
	resp["bulk_synced"] = s.snapshots.BulkSynced()
	if code != http.StatusOK {
		resp["status"] = "unavailable"
	}
	writeJSON(w, code, resp)
}

// connectedAddress reads the optional ?address= query parameter.
func connectedAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr := strings.TrimSpace(r.URL.Query().Get("address"))
	if addr == "" {
		return "", true
	}
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return "", false
	}
	return model.NormalizeAddress(addr), true
}

func tokenIDParam(w http.ResponseWriter, r *http.Request) (model.TokenID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid token id")
		return 0, false
	}
	return model.TokenID(id), true
}

// buildTiles merges the current snapshot with the cache. It writes the
// error response itself and returns ok=false on failure.
func (s *Server) buildTiles(w http.ResponseWriter, r *http.Request, connected string) ([]market.Tile, *syncer.Snapshot, bool) {
	snap := s.snapshots.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "chain snapshot not ready")
		return nil, nil, false
	}

	records, err := s.mirror.ListParcelMetadata(r.Context())
	if err != nil {
		s.logger.Error("list parcel metadata failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read parcel metadata")
		return nil, nil, false
	}
	markers, err := s.mirror.ListPendingMarkers(r.Context())
	if err != nil {
		s.logger.Error("list pending markers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read pending markers")
		return nil, nil, false
	}

	return market.Build(market.Input{
		Terras:    snap.Terras,
		Records:   records,
		Markers:   markers,
		Connected: connected,
		Defaults:  s.mirror.Defaults(),
	}), snap, true
}

type terrasResponse struct {
	Count uint64        `json:"count"`
	Tiles []market.Tile `json:"tiles"`
}

func (s *Server) handleListTerras(w http.ResponseWriter, r *http.Request) {
	connected, ok := connectedAddress(w, r)
	if !ok {
		return
	}
	tiles, snap, ok := s.buildTiles(w, r, connected)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, terrasResponse{Count: snap.Count, Tiles: tiles})
}

func (s *Server) handleGetTerra(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	connected, ok := connectedAddress(w, r)
	if !ok {
		return
	}
	tiles, _, ok := s.buildTiles(w, r, connected)
	if !ok {
		return
	}
	for _, t := range tiles {
		if t.TokenID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "terra not found")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	connected, ok := connectedAddress(w, r)
	if !ok {
		return
	}
	tiles, _, ok := s.buildTiles(w, r, connected)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, market.Summarize(tiles))
}

type metadataRequest struct {
	Terrain string   `json:"terrain"`
	Crops   []string `json:"crops"`
}

func (req *metadataRequest) validate() string {
	req.Terrain = strings.TrimSpace(req.Terrain)
	if req.Terrain == "" || len(req.Terrain) > maxTerrainLen {
		return "terrain must be 1-64 characters"
	}
	if len(req.Crops) > maxCrops {
		return "too many crops"
	}
	crops := make([]string, 0, len(req.Crops))
	for _, c := range req.Crops {
		c = strings.TrimSpace(c)
		if c == "" || len(c) > maxCropLen {
			return "crop names must be 1-64 characters"
		}
		crops = append(crops, c)
	}
	req.Crops = crops
	return ""
}

func (s *Server) handlePutMetadata(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	if snap := s.snapshots.Snapshot(); snap != nil && uint64(id) >= snap.Count {
		writeError(w, http.StatusNotFound, "terra not found")
		return
	}

	var req metadataRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := s.mirror.UpsertMetadata(r.Context(), id, req.Terrain, req.Crops); err != nil {
		s.logger.Error("upsert metadata failed", "token_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save metadata")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token_id": id, "terrain": req.Terrain, "crops": req.Crops})
}

type pendingRequest struct {
	TokenID   *int64 `json:"token_id"`
	TxHash    string `json:"tx_hash"`
	Action    string `json:"action"`
	Submitter string `json:"submitter"`
}

type pendingResponse struct {
	ID        string        `json:"id"`
	TokenID   model.TokenID `json:"token_id"`
	TxHash    string        `json:"tx_hash"`
	Action    model.Action  `json:"action"`
	Submitter string        `json:"submitter"`
	CreatedAt time.Time     `json:"created_at"`
}

func toPendingResponse(p model.PendingTx) pendingResponse {
	return pendingResponse{
		ID:        p.ID.String(),
		TokenID:   p.TokenID,
		TxHash:    p.TxHash,
		Action:    p.Action,
		Submitter: p.Submitter,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

// handleAddPending records the marker and starts the confirmation watch.
// A submission without a well-formed hash never creates a marker.
func (s *Server) handleAddPending(w http.ResponseWriter, r *http.Request) {
	var req pendingRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.TokenID == nil || *req.TokenID < 0 {
		writeError(w, http.StatusBadRequest, "token_id is required")
		return
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !common.IsHexAddress(req.Submitter) {
		writeError(w, http.StatusBadRequest, "invalid submitter address")
		return
	}

	id := model.TokenID(*req.TokenID)
	tx, err := s.mirror.AddPendingMarker(r.Context(), id, req.TxHash, action, req.Submitter)
	if errors.Is(err, mirror.ErrInvalidTxHash) {
		writeError(w, http.StatusBadRequest, "invalid tx_hash")
		return
	}
	if err != nil {
		s.logger.Error("add pending marker failed", "token_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record pending transaction")
		return
	}

	if s.watcher != nil {
		s.watcher.Watch(r.Context(), tx.TxHash, id)
	}
	writeJSON(w, http.StatusCreated, toPendingResponse(tx))
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	txs, err := s.mirror.ListPendingTxs(r.Context())
	if err != nil {
		s.logger.Error("list pending txs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read pending transactions")
		return
	}
	out := make([]pendingResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toPendingResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePending(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "txHash")
	if hash == "" {
		writeError(w, http.StatusBadRequest, "tx hash required")
		return
	}
	if err := s.mirror.RemovePendingMarkerByHash(r.Context(), hash); err != nil {
		s.logger.Error("remove pending marker failed", "tx_hash", hash, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove pending transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.ManualRefresh(r.Context()); err != nil {
		s.logger.Warn("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	resp := map[string]any{"status": "refreshed"}
	if snap := s.snapshots.Snapshot(); snap != nil {
		resp["count"] = snap.Count
		resp["parcels"] = len(snap.Terras)
	}
	writeJSON(w, http.StatusOK, resp)
}

// simulateRequest takes the listing price either in wei or in ether, not both.
type simulateRequest struct {
	Action   string `json:"action"`
	From     string `json:"from"`
	PriceWei string `json:"price_wei"`
	PriceEth string `json:"price_eth"`
}

type simulateResponse struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if s.simulator == nil {
		writeError(w, http.StatusNotImplemented, "simulation unavailable")
		return
	}
	id, ok := tokenIDParam(w, r)
	if !ok {
		return
	}
	var req simulateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	action, err := model.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !common.IsHexAddress(req.From) {
		writeError(w, http.StatusBadRequest, "invalid from address")
		return
	}
	var price *big.Int
	switch {
	case req.PriceWei != "" && req.PriceEth != "":
		writeError(w, http.StatusBadRequest, "set price_wei or price_eth, not both")
		return
	case req.PriceWei != "":
		p, ok := new(big.Int).SetString(req.PriceWei, 10)
		if !ok || p.Sign() < 0 {
			writeError(w, http.StatusBadRequest, "price_wei must be a non-negative integer")
			return
		}
		price = p
	case req.PriceEth != "":
		p, ok := market.ParseEther(req.PriceEth)
		if !ok {
			writeError(w, http.StatusBadRequest, "price_eth must be a non-negative ether amount")
			return
		}
		price = p
	}

	err = s.simulator.Simulate(r.Context(), chain.SimulateRequest{
		Action:   action,
		TokenID:  id,
		From:     req.From,
		PriceWei: price,
	})
	var revert *evm.RevertError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, simulateResponse{OK: true})
	case errors.As(err, &revert):
		reason := revert.Reason
		if reason == "" {
			reason = genericRevertReason
		}
		writeJSON(w, http.StatusOK, simulateResponse{OK: false, Reason: reason})
	default:
		s.logger.Warn("simulation failed", "token_id", id, "action", action, "error", err)
		writeError(w, http.StatusBadGateway, "simulation failed")
	}
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	if s.roles == nil {
		writeError(w, http.StatusNotImplemented, "role check unavailable")
		return
	}
	addr := chi.URLParam(r, "address")
	if !common.IsHexAddress(addr) {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	isAdmin, err := s.roles.IsAdmin(r.Context(), addr)
	if err != nil {
		s.logger.Warn("admin role check failed", "address", addr, "error", err)
		writeError(w, http.StatusBadGateway, "role check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": model.NormalizeAddress(addr), "is_admin": isAdmin})
}

type geometryResponse struct {
	LatMicro int32         `json:"lat_micro"`
	LngMicro int32         `json:"lng_micro"`
	WidthCm  uint32        `json:"width_cm"`
	HeightCm uint32        `json:"height_cm"`
	Corners  [4]geo.LatLng `json:"corners"`
	AreaM2   float64       `json:"area_m2"`
}

// handleGeometry previews the polygon and the mint arguments for a parcel
// anchored at lat/lng. The size comes from width_cm/height_cm or from an
// opposite corner given as ne_lat/ne_lng.
func (s *Server) handleGeometry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, lng, ok := parseLatLng(q.Get("lat"), q.Get("lng"))
	if !ok {
		writeError(w, http.StatusBadRequest, "lat and lng must be valid degrees")
		return
	}

	var width, height uint64
	if q.Has("ne_lat") || q.Has("ne_lng") {
		neLat, neLng, ok := parseLatLng(q.Get("ne_lat"), q.Get("ne_lng"))
		if !ok {
			writeError(w, http.StatusBadRequest, "ne_lat and ne_lng must be valid degrees")
			return
		}
		wCm, hCm := geo.SizeCm(geo.LatLng{lat, lng}, geo.LatLng{neLat, neLng})
		width, height = uint64(wCm), uint64(hCm)
	} else {
		var errW, errH error
		width, errW = strconv.ParseUint(q.Get("width_cm"), 10, 32)
		height, errH = strconv.ParseUint(q.Get("height_cm"), 10, 32)
		if errW != nil || errH != nil {
			writeError(w, http.StatusBadRequest, "width_cm and height_cm must be positive integers")
			return
		}
	}
	if width == 0 || height == 0 {
		writeError(w, http.StatusBadRequest, "parcel size must be at least 1cm per side")
		return
	}

	latMicro := geo.DegreesToMicro(lat)
	lngMicro := geo.DegreesToMicro(lng)
	writeJSON(w, http.StatusOK, geometryResponse{
		LatMicro: latMicro,
		LngMicro: lngMicro,
		WidthCm:  uint32(width),
		HeightCm: uint32(height),
		Corners:  geo.Corners(geo.MicroToDegrees(latMicro), geo.MicroToDegrees(lngMicro), uint32(width), uint32(height)),
		AreaM2:   geo.AreaM2(uint32(width), uint32(height)),
	})
}

func parseLatLng(latStr, lngStr string) (float64, float64, bool) {
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
