package claims

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Provider loads dataset snapshots. The detection core only requires
// that row order is stable across loads of the same file.
type Provider interface {
	Load(ctx context.Context, source Source) (*Dataset, error)
}

// CSVProvider reads the vendor CSV drops from a data directory.
type CSVProvider struct {
	dir   string
	files map[Source]string
}

func NewCSVProvider(dir string, files map[Source]string) *CSVProvider {
	resolved := map[Source]string{
		SourcePharmacy: "pharmacy.csv",
		SourceMedical:  "medical.csv",
		SourceJoined:   "joined.csv",
	}
	for src, name := range files {
		if name != "" {
			resolved[src] = name
		}
	}
	return &CSVProvider{dir: dir, files: resolved}
}

func (p *CSVProvider) Load(ctx context.Context, source Source) (*Dataset, error) {
	name, ok := p.files[source]
	if !ok {
		return nil, fmt.Errorf("no file configured for dataset '%s'", source)
	}

	file, err := os.Open(filepath.Join(p.dir, filepath.Clean(name)))
	if err != nil {
		return nil, fmt.Errorf("open %s dataset: %w", source, err)
	}
	defer file.Close()

	return ReadDataset(ctx, source, file)
}

// ReadDataset decodes one CSV stream into a typed Dataset. Cells that
// cannot be coerced to their declared type are recorded on the row as
// BadCells rather than aborting the load.
func ReadDataset(ctx context.Context, source Source, r io.Reader) (*Dataset, error) {
	buffered := bufio.NewReaderSize(r, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := buffered.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		buffered.Discard(3)
	}

	reader := csv.NewReader(buffered)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", source, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	ds := &Dataset{
		Source:  source,
		Columns: make(map[string]bool, len(headers)),
	}
	for _, h := range headers {
		if h != "" {
			ds.Columns[h] = true
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", source, len(ds.Rows), err)
		}
		ds.Rows = append(ds.Rows, decodeRow(headers, record))
	}

	return ds, nil
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "2006/01/02"}

func decodeRow(headers []string, record []string) Row {
	row := Row{}
	for i, header := range headers {
		if header == "" || i >= len(record) {
			continue
		}
		value := strings.TrimSpace(record[i])
		switch header {
		case ColPatientID:
			row.PatientID = value
		case ColClaimID:
			row.ClaimID = value
		case ColProviderID:
			row.ProviderID = value
		case ColPrescriberNPI:
			row.PrescriberNPI = value
		case ColDrugName:
			row.DrugName = value
		case ColDrugHCPCS:
			row.DrugHCPCS = value
		case ColDiagnosisPrimary:
			row.DiagnosisPrimary = value
		case ColPlaceOfService:
			row.PlaceOfService = value
		case ColClaimStatus:
			row.ClaimStatus = value
		case ColPatientGender:
			row.PatientGender = value
		case ColPatientZIP:
			row.PatientZIP = value
		case ColState:
			row.State = value
		case ColFillDate:
			row.FillDate = parseDate(&row, header, value)
		case ColServiceFromDate:
			row.ServiceFromDate = parseDate(&row, header, value)
		case ColServiceToDate:
			row.ServiceToDate = parseDate(&row, header, value)
		case ColSubmissionDate:
			row.SubmissionDate = parseDate(&row, header, value)
		case ColAdjudicationDate:
			row.AdjudicationDate = parseDate(&row, header, value)
		case ColAdmissionDate:
			row.AdmissionDate = parseDate(&row, header, value)
		case ColDischargeDate:
			row.DischargeDate = parseDate(&row, header, value)
		case ColChargeAmount:
			row.ChargeAmount = parseAmount(&row, header, value)
		case ColAllowedAmount:
			row.AllowedAmount = parseAmount(&row, header, value)
		case ColPaidAmount:
			row.PaidAmount = parseAmount(&row, header, value)
		case ColPatientResp:
			row.PatientResponsibility = parseAmount(&row, header, value)
		case ColAdjustmentAmount:
			row.AdjustmentAmount = parseAmount(&row, header, value)
		case ColQuantity:
			row.Quantity = parseAmount(&row, header, value)
		case ColDaysSupply:
			row.DaysSupply = parseAmount(&row, header, value)
		case ColPatientAge:
			row.PatientAge = parseAge(&row, header, value)
		default:
			if row.Extra == nil {
				row.Extra = make(map[string]string)
			}
			row.Extra[header] = value
		}
	}
	return row
}

func parseDate(row *Row, column, value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	row.BadCells = append(row.BadCells, BadCell{Column: column, Raw: value})
	return time.Time{}
}

func parseAmount(row *Row, column, value string) float64 {
	if value == "" {
		return 0
	}
	cleaned := strings.ReplaceAll(strings.TrimPrefix(value, "$"), ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		row.BadCells = append(row.BadCells, BadCell{Column: column, Raw: value})
		return 0
	}
	return f
}

func parseAge(row *Row, column, value string) int {
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		row.BadCells = append(row.BadCells, BadCell{Column: column, Raw: value})
		return 0
	}
	return n
}
