package header

import (
	"math"
	"time"

	"github.com/fire-hep/fire/backend"
	"github.com/fire-hep/fire/data"
)

// RunHeader is the fixed per-run record appended to the runs/ group once
// per run boundary, per spec.md section 3 and 4.E.
type RunHeader struct {
	Number       int32
	DetectorName string
	Description  string
	SoftwareTag  string
	Start        int64
	End          int64

	Parameters ParameterMap
}

// NewRunHeader returns a zeroed RunHeader ready for Clear/use.
func NewRunHeader() *RunHeader {
	return &RunHeader{Parameters: NewParameterMap()}
}

// Clear resets the fixed scalar fields to their sentinel values and the
// parameter map's values (not its keys), mirroring EventHeader.Clear.
func (h *RunHeader) Clear() {
	h.Number = math.MinInt32
	h.DetectorName = ""
	h.Description = ""
	h.SoftwareTag = ""
	h.Start = 0
	h.End = 0
	h.Parameters.Clear()
}

// Attach registers the fixed scalar fields; Parameters is handled
// separately, as in EventHeader.
func (h *RunHeader) Attach(b *data.Builder) {
	b.Add("number", &h.Number)
	b.Add("detectorName", &h.DetectorName)
	b.Add("description", &h.Description)
	b.Add("softwareTag", &h.SoftwareTag)
	b.Add("start", &h.Start)
	b.Add("end", &h.End)
}

// RunStart implements spec.md section 4.E's run-boundary lifecycle:
// stamps the run number and captures the wall-clock start time. Grounded
// on friggdb/backend/block_meta.go's now := time.Now() pattern at block
// creation.
func (h *RunHeader) RunStart(run int32) {
	h.Number = run
	h.Start = time.Now().Unix()
}

// RunEnd captures the wall-clock end time, the RunHeader analogue of
// friggdb's BlockMeta.ObjectAdded stamping EndTime on each write.
func (h *RunHeader) RunEnd() {
	h.End = time.Now().Unix()
}

// DeclareRunHeader registers the fixed-field columns at path.
func DeclareRunHeader(w *backend.File, path string, h *RunHeader, cfg data.Config) error {
	tree, err := data.New(path, h, cfg)
	if err != nil {
		return err
	}
	return tree.Declare(w)
}

// SaveRunHeader appends the current run header state.
func SaveRunHeader(w *backend.File, path string, h *RunHeader, cfg data.Config) error {
	tree, err := data.New(path, h, cfg)
	if err != nil {
		return err
	}
	if err := tree.Save(w); err != nil {
		return err
	}
	return declareAndSaveParameters(w, path+"/"+parametersSubpath, &h.Parameters)
}

// LoadRunHeader loads the fixed scalar fields and the run's parameters.
func LoadRunHeader(r *backend.File, path string, h *RunHeader, cfg data.Config) error {
	tree, err := data.New(path, h, cfg)
	if err != nil {
		return err
	}
	if err := tree.Load(r); err != nil {
		return err
	}
	h.Parameters = NewParameterMap()
	return loadParameters(r, path+"/"+parametersSubpath, &h.Parameters)
}
