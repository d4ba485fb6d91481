package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conneroisu/brandkit/internal/build"
	"github.com/conneroisu/brandkit/internal/errors"
	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/storage"
	"github.com/conneroisu/brandkit/internal/transform"
	"github.com/conneroisu/brandkit/internal/types"
	"github.com/conneroisu/brandkit/internal/version"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type uploadResponse struct {
	Success bool          `json:"success"`
	Asset   storage.Asset `json:"asset"`
}

type listResponse struct {
	Success   bool            `json:"success"`
	PartnerID string          `json:"partnerId"`
	Assets    []storage.Asset `json:"assets"`
}

// ProcessingOptions override the server's pipeline configuration for one
// request. Unset fields keep the configured value.
type ProcessingOptions struct {
	EnableOptimization *bool    `json:"enableOptimization,omitempty"`
	QualityThreshold   *float64 `json:"qualityThreshold,omitempty"`
	// MaxProcessingTime is in milliseconds.
	MaxProcessingTime *int64   `json:"maxProcessingTime,omitempty"`
	OutputFormats     []string `json:"outputFormats,omitempty"`
	CompressionLevel  *int     `json:"compressionLevel,omitempty"`
}

// Apply returns base with the set options applied.
func (o ProcessingOptions) Apply(base build.Config) build.Config {
	if o.EnableOptimization != nil {
		base.EnableOptimization = *o.EnableOptimization
	}
	if o.QualityThreshold != nil {
		base.QualityThreshold = *o.QualityThreshold
	}
	if o.MaxProcessingTime != nil {
		base.MaxProcessingTime = time.Duration(*o.MaxProcessingTime) * time.Millisecond
	}
	if len(o.OutputFormats) > 0 {
		base.OutputFormats = append([]string(nil), o.OutputFormats...)
	}
	if o.CompressionLevel != nil {
		base.CompressionLevel = *o.CompressionLevel
	}
	return base
}

type processRequest struct {
	ProcessingOptions ProcessingOptions  `json:"processingOptions"`
	BuildConfig       *types.BuildConfig `json:"buildConfig,omitempty"`
}

type processResponse struct {
	Success         bool                   `json:"success"`
	ProcessedAssets []types.ProcessedAsset `json:"processedAssets"`
	Warnings        []string               `json:"warnings"`
	Errors          []string               `json:"errors"`
	QualityScore    float64                `json:"qualityScore"`
	ProcessingTime  int64                  `json:"processingTime"`
	Stats           types.PipelineStats    `json:"stats"`
}

type statsResponse struct {
	Pipeline    *build.MetricsSnapshot `json:"pipeline,omitempty"`
	Cache       *build.CacheStats      `json:"cache,omitempty"`
	Subscribers int                    `json:"subscribers"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.HasCode(err, errors.ErrCodeInvalidPath),
		errors.HasCode(err, errors.ErrCodeValidationFailed),
		errors.HasCode(err, errors.ErrCodeConfigInvalid),
		errors.HasCode(err, errors.ErrCodeUnsupportedFormat):
		status = http.StatusBadRequest
	case errors.HasCode(err, errors.ErrCodeAssetNotFound),
		errors.HasCode(err, errors.ErrCodeFileNotFound):
		status = http.StatusNotFound
	case errors.HasCode(err, errors.ErrCodeFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed",
			"path", r.URL.Path, "error_context", errors.GetErrorContext(err))
	}
	writeJSON(w, status, errorResponse{Error: errors.FormatError(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var resp statsResponse
	pipeline := s.builds.Pipeline()
	if m := pipeline.Metrics(); m != nil {
		snap := m.Snapshot()
		resp.Pipeline = &snap
	}
	if c := pipeline.Cache(); c != nil {
		stats := c.Stats()
		resp.Cache = &stats
	}
	resp.Subscribers = s.builds.Events().Subscribers()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "partnerId")
	if err := storage.ValidatePartnerID(partnerID); err != nil {
		s.writeError(w, r, err)
		return
	}

	limit := s.config.Server.MaxUploadBytes
	// Multipart framing needs some room beyond the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	file, header, err := r.FormFile("asset")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, errors.NewValidationError(errors.ErrCodeFileTooLarge, "upload exceeds size limit"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no file provided in field \"asset\""})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		s.writeError(w, r, errors.WrapStorage(err, "read upload"))
		return
	}
	if int64(len(data)) > limit {
		s.writeError(w, r, errors.NewValidationError(errors.ErrCodeFileTooLarge, "upload exceeds size limit"))
		return
	}

	mime, ok := transform.IsSupportedUpload(data)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported file format: " + mime})
		return
	}

	assetType := types.ParseAssetType(r.FormValue("type"))
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" && assetType == types.AssetTypeCustom {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	saved, err := s.store.Save(r.Context(), storage.Asset{
		PartnerID: partnerID,
		Type:      assetType,
		Name:      name,
		FileName:  header.Filename,
	}, bytes.NewReader(data))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "Asset uploaded",
		"partner_id", partnerID, "asset_id", saved.ID, "type", saved.Type, "size", saved.Size)
	writeJSON(w, http.StatusCreated, uploadResponse{Success: true, Asset: saved})
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "partnerId")
	assets, err := s.store.List(r.Context(), partnerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if t := r.URL.Query().Get("type"); t != "" {
		want := types.ParseAssetType(t)
		filtered := assets[:0]
		for _, a := range assets {
			if a.Type == want {
				filtered = append(filtered, a)
			}
		}
		assets = filtered
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, PartnerID: partnerID, Assets: assets})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	rc, asset, err := s.store.Open(r.Context(), chi.URLParam(r, "partnerId"), chi.URLParam(r, "assetId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", asset.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.SanitizeFileName(asset.FileName)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(r.Context(), err, "Download interrupted", "asset_id", asset.ID)
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "partnerId")
	if err := storage.ValidatePartnerID(partnerID); err != nil {
		s.writeError(w, r, err)
		return
	}

	var req processRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error()})
			return
		}
	}

	base := s.builds.Pipeline()
	pipeline, err := build.NewPipeline(req.ProcessingOptions.Apply(base.Config()), base.Cache(), base.Metrics(), s.logger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	buildConfig := types.BuildConfig{BuildID: "process-" + uuid.NewString(), PartnerID: partnerID}
	if req.BuildConfig != nil {
		buildConfig = *req.BuildConfig
		if buildConfig.BuildID == "" {
			buildConfig.BuildID = "process-" + uuid.NewString()
		}
		buildConfig.PartnerID = partnerID
	}

	scratch, err := os.MkdirTemp("", "brandkit-process-*")
	if err != nil {
		s.writeError(w, r, errors.WrapIO(err, errors.ErrCodeBuildPath, "create scratch directory"))
		return
	}
	defer os.RemoveAll(scratch)

	assets, err := storage.Materialize(r.Context(), s.store, partnerID, filepath.Join(scratch, "sources"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	buildPath := filepath.Join(scratch, "build")
	result := pipeline.ProcessPipeline(r.Context(), buildPath, buildConfig, assets)
	for i := range result.ProcessedAssets {
		relativize(&result.ProcessedAssets[i], buildPath)
	}

	writeJSON(w, http.StatusOK, processResponse{
		Success:         result.Success,
		ProcessedAssets: result.ProcessedAssets,
		Warnings:        result.Warnings,
		Errors:          result.Errors,
		QualityScore:    result.QualityScore,
		ProcessingTime:  result.ProcessingTime,
		Stats:           build.GetPipelineStats(result),
	})
}

// relativize rewrites output paths relative to the scratch build tree,
// which is gone once the response is written.
func relativize(asset *types.ProcessedAsset, root string) {
	for i, p := range asset.OutputPaths {
		if rel, err := filepath.Rel(root, p); err == nil {
			asset.OutputPaths[i] = filepath.ToSlash(rel)
		}
	}
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	var req types.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed build request: " + err.Error()})
		return
	}

	if req.Assets.IsEmpty() {
		cleanup, err := s.storedAssets(r.Context(), &req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		defer cleanup()
	}

	report := s.builds.Execute(r.Context(), req)
	writeJSON(w, http.StatusOK, report)
}

// storedAssets fills req with the partner's stored uploads. Requests whose
// partner id cannot name a store namespace are left for the orchestrator to
// reject.
func (s *Server) storedAssets(ctx context.Context, req *types.BuildRequest) (func(), error) {
	nothing := func() {}
	partnerID := req.Build.EffectivePartnerID()
	if storage.ValidatePartnerID(partnerID) != nil {
		return nothing, nil
	}

	dir, err := os.MkdirTemp("", "brandkit-sources-*")
	if err != nil {
		return nothing, errors.WrapIO(err, errors.ErrCodeBuildPath, "create source directory")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	assets, err := storage.Materialize(ctx, s.store, partnerID, dir)
	if err != nil {
		cleanup()
		return nothing, err
	}
	req.Assets = assets
	return cleanup, nil
}

func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	buildID := chi.URLParam(r, "buildId")
	dir := s.builds.Options().ReportDir
	if dir == "" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "build reports are not stored"})
		return
	}
	report, err := orchestrator.LoadReport(dir, buildID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
