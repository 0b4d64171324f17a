// Package server exposes the allocation core's admission surface
// (admit, lookup, listBySponsor) as thin net/http handlers. This is a
// reference transport only: SIWE/session establishment is out of scope,
// so handlers trust an already-authenticated sponsor address supplied by
// an upstream gateway rather than performing any session work of their
// own.
package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/the-compact/allocator-core/pkg/compact"
	"github.com/the-compact/allocator-core/pkg/metrics"
	"github.com/the-compact/allocator-core/pkg/validator"
)

// SponsorHeader names the header an upstream gateway is expected to set
// with the authenticated sponsor's checksummed address, once session
// establishment has already happened upstream of this service.
const SponsorHeader = "X-Authenticated-Sponsor"

// AdmissionHandlers exposes the CompactService admission pipeline over
// HTTP, in the same struct-plus-logger shape as the teacher's
// BatchHandlers.
type AdmissionHandlers struct {
	service *compact.Service
	metrics *metrics.Registry
	logger  *log.Logger
}

// NewAdmissionHandlers builds AdmissionHandlers for service.
func NewAdmissionHandlers(service *compact.Service, reg *metrics.Registry, logger *log.Logger) *AdmissionHandlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[AdmissionAPI] ", log.LstdFlags)
	}
	return &AdmissionHandlers{service: service, metrics: reg, logger: logger}
}

// Mux builds a ServeMux wired to every handler this package exposes.
func (h *AdmissionHandlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compacts", h.dispatchCompacts)
	mux.HandleFunc("/api/sponsors/", h.HandleListBySponsor)
	return mux
}

func (h *AdmissionHandlers) dispatchCompacts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.HandleAdmit(w, r)
	case http.MethodGet:
		h.HandleLookup(w, r)
	default:
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// admitRequest is the wire shape for POST /api/compacts (spec §6.5).
type admitRequest struct {
	ChainID string          `json:"chainId"`
	Compact compact.Compact `json:"compact"`
}

// admitResponse is the wire shape for a successful admission.
type admitResponse struct {
	ClaimHash string `json:"claimHash"`
	Signature string `json:"signature"`
}

// HandleAdmit handles POST /api/compacts: validate, hash, sign, persist
// (spec §4.6).
func (h *AdmissionHandlers) HandleAdmit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	attemptID := uuid.New()

	sponsor, err := sponsorFromHeader(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.ChainID == "" {
		writeJSONError(w, "chainId is required", http.StatusBadRequest)
		return
	}

	var stop func(string)
	if h.metrics != nil {
		stop = h.metrics.Timer()
	}

	admission, err := h.service.Admit(r.Context(), req.ChainID, req.Compact, sponsor)
	if err != nil {
		outcome := "rejected"
		if stop != nil {
			stop(outcome)
		}
		h.reportValidationFailure(err)
		h.logger.Printf("admit %s rejected: %v", attemptID, err)
		h.writeAdmitError(w, err)
		return
	}
	if stop != nil {
		stop("accepted")
	}
	h.logger.Printf("admit %s accepted: claimHash=%s", attemptID, hexEncode(admission.ClaimHash[:]))

	json.NewEncoder(w).Encode(admitResponse{
		ClaimHash: hexEncode(admission.ClaimHash[:]),
		Signature: hexEncode(admission.Signature[:]),
	})
}

func (h *AdmissionHandlers) reportValidationFailure(err error) {
	if h.metrics == nil {
		return
	}
	var verr *validator.Error
	if errors.As(err, &verr) {
		h.metrics.ObserveValidationFailure(string(verr.Kind))
	}
}

// writeAdmitError maps the spec §7 error taxonomy onto HTTP status codes.
func (h *AdmissionHandlers) writeAdmitError(w http.ResponseWriter, err error) {
	var verr *validator.Error
	if errors.As(err, &verr) {
		writeJSONError(w, verr.Error(), http.StatusUnprocessableEntity)
		return
	}

	var serr *compact.ServiceError
	if errors.As(err, &serr) {
		switch serr.Kind {
		case compact.KindUnauthorised:
			writeJSONError(w, serr.Error(), http.StatusForbidden)
		case compact.KindContention:
			writeJSONError(w, serr.Error(), http.StatusConflict)
		default:
			h.logger.Printf("admit failed: %v", serr)
			writeJSONError(w, serr.Error(), http.StatusBadGateway)
		}
		return
	}

	h.logger.Printf("admit failed: %v", err)
	writeJSONError(w, "internal error", http.StatusInternalServerError)
}

// lookupResponse is the wire shape for GET /api/compacts?chainId=&claimHash=.
type lookupResponse struct {
	ChainID   string `json:"chainId"`
	ClaimHash string `json:"claimHash"`
	Signature string `json:"signature"`
}

// HandleLookup handles GET /api/compacts?chainId=&claimHash=.
func (h *AdmissionHandlers) HandleLookup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	chainID := r.URL.Query().Get("chainId")
	claimHashHex := r.URL.Query().Get("claimHash")
	if chainID == "" || claimHashHex == "" {
		writeJSONError(w, "chainId and claimHash are required", http.StatusBadRequest)
		return
	}

	claimHash, err := hexDecode32(claimHashHex)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("invalid claimHash: %v", err), http.StatusBadRequest)
		return
	}

	record, err := h.service.Lookup(r.Context(), chainID, claimHash)
	if err != nil {
		if errors.Is(err, compact.ErrCompactNotFound) {
			writeJSONError(w, "compact not found", http.StatusNotFound)
			return
		}
		h.logger.Printf("lookup failed: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(lookupResponse{
		ChainID:   record.ChainID,
		ClaimHash: hexEncode(record.ClaimHash[:]),
		Signature: hexEncode(record.Signature[:]),
	})
}

// HandleListBySponsor handles GET /api/sponsors/{address}/compacts.
func (h *AdmissionHandlers) HandleListBySponsor(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	addrStr := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/sponsors/"), "/compacts")
	if !common.IsHexAddress(addrStr) {
		writeJSONError(w, "invalid sponsor address", http.StatusBadRequest)
		return
	}

	records, err := h.service.ListBySponsor(r.Context(), common.HexToAddress(addrStr))
	if err != nil {
		h.logger.Printf("list by sponsor failed: %v", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := make([]lookupResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, lookupResponse{
			ChainID:   rec.ChainID,
			ClaimHash: hexEncode(rec.ClaimHash[:]),
			Signature: hexEncode(rec.Signature[:]),
		})
	}
	json.NewEncoder(w).Encode(resp)
}

func sponsorFromHeader(r *http.Request) (common.Address, error) {
	raw := r.Header.Get(SponsorHeader)
	if raw == "" {
		return common.Address{}, fmt.Errorf("%s header is required", SponsorHeader)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s is not a valid address", SponsorHeader)
	}
	return common.HexToAddress(raw), nil
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func hexEncode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func hexDecode32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
