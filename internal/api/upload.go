package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/ignite/lead-refinery/internal/instruction"
	"github.com/ignite/lead-refinery/internal/ngfilter"
	"github.com/ignite/lead-refinery/internal/pipeline"
	"github.com/ignite/lead-refinery/internal/pkg/logger"
	"github.com/ignite/lead-refinery/internal/table"
)

const maxUploadBytes = 64 << 20

// HandleFilterUpload cleans an uploaded list without touching any backend:
// multipart form with an "instruction" CSV, an "input" CSV and one or more
// "ng" CSVs (the file name, without extension, is the NG tab name). The
// response is the filtered CSV; run stats travel in X-Run-* headers.
//
//	POST /api/v1/filter
func (h *Handlers) HandleFilterUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "parsing multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	instructionTable, err := readPart(r.MultipartForm, "instruction")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	settings, err := instruction.Parse(instructionTable, "instruction upload")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	input, err := readPart(r.MultipartForm, "input")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ngHeaders := r.MultipartForm.File["ng"]
	if len(ngHeaders) == 0 {
		respondError(w, http.StatusBadRequest, "at least one \"ng\" file is required")
		return
	}
	sheets := make([]ngfilter.Sheet, 0, len(ngHeaders))
	for _, fh := range ngHeaders {
		t, err := readHeader(fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		name := strings.TrimSuffix(fh.Filename, path.Ext(fh.Filename))
		sheets = append(sheets, ngfilter.Sheet{Name: name, Table: t})
	}

	report, err := pipeline.Filter(settings, input, sheets)
	if err != nil {
		var cfgErr *instruction.ConfigError
		if errors.As(err, &cfgErr) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="filtered.csv"`)
	w.Header().Set("X-Run-Id", report.RunID)
	w.Header().Set("X-Run-Input-Rows", strconv.Itoa(report.InputRows))
	w.Header().Set("X-Run-Output-Rows", strconv.Itoa(report.OutputRows))
	w.Header().Set("X-Run-Ng-Company", strconv.Itoa(report.NGCompany))
	w.Header().Set("X-Run-Ng-Email", strconv.Itoa(report.NGEmail))
	w.Header().Set("X-Run-Ng-Industry", strconv.Itoa(report.NGIndustry))
	if err := report.Output.WriteCSV(w); err != nil {
		logger.Error("writing filtered CSV response failed", "run_id", report.RunID, "error", err.Error())
	}
}

// readPart parses the single CSV uploaded under the given form field.
func readPart(form *multipart.Form, field string) (*table.Table, error) {
	headers := form.File[field]
	if len(headers) != 1 {
		return nil, errors.New("exactly one \"" + field + "\" file is required")
	}
	return readHeader(headers[0])
}

func readHeader(fh *multipart.FileHeader) (*table.Table, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := table.ReadCSV(f)
	if err != nil {
		return nil, errors.New("parsing " + fh.Filename + ": " + err.Error())
	}
	return t, nil
}
