package report

import (
	"encoding/csv"
	"io"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"github.com/xuri/excelize/v2"

	"github.com/CMIP-Data-Request/CMIP7-DReq-Software/internal/metadata"
)

// MetadataDescription heads every variable metadata JSON file.
const MetadataDescription = "Metadata attributes that characterize CMOR variables. " +
	"Each variable is uniquely idenfied by a compound name comprised of a CMIP6-era table name and a short variable name."

// CompoundNameColumn is the key column of tabular metadata output.
const CompoundNameColumn = "Compound Name"

// SheetName is the worksheet written to XLSX metadata files.
const SheetName = "Variables"

// Metadata builds the variable metadata document.
func Metadata(cat *metadata.Catalog, prov Provenance) *orderedmap.OrderedMap[string, any] {
	header := orderedmap.New[string, any]()
	header.Set("Description", MetadataDescription)
	header.Set("no. of variables", cat.Len())
	prov.addTo(header)

	out := orderedmap.New[string, any]()
	out.Set("Header", header)
	out.Set(CompoundNameColumn, cat)
	return out
}

// Columns returns the tabular column order: compound name, the two standard
// name columns, then every other attribute in first-seen order.
func Columns(cat *metadata.Catalog) []string {
	cols := []string{CompoundNameColumn, metadata.AttrStandardName, metadata.AttrStandardNameProposed}
	for _, v := range cat.Variables() {
		for _, a := range v.Attrs() {
			if !slices.Contains(cols, a) {
				cols = append(cols, a)
			}
		}
	}
	return cols
}

// Rows returns the header row followed by one row per variable.
func Rows(cat *metadata.Catalog) [][]string {
	cols := Columns(cat)
	rows := make([][]string, 0, cat.Len()+1)
	rows = append(rows, cols)
	for _, v := range cat.Variables() {
		row := make([]string, len(cols))
		for i, c := range cols {
			if c == CompoundNameColumn {
				row[i] = v.CompoundName
				continue
			}
			row[i], _ = v.Get(c)
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteMetadataJSON writes the metadata document as JSON.
func WriteMetadataJSON(w io.Writer, cat *metadata.Catalog, prov Provenance) error {
	return encode(w, Metadata(cat, prov))
}

// WriteMetadataCSV writes one row per variable.
func WriteMetadataCSV(w io.Writer, cat *metadata.Catalog) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(cat)); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// WriteMetadataXLSX writes one row per variable to a single worksheet.
func WriteMetadataXLSX(w io.Writer, cat *metadata.Catalog) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return Error.Wrap(err)
	}
	for i, row := range Rows(cat) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return Error.Wrap(err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return Error.Wrap(err)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return Error.Wrap(err)
	}
	_, err := f.WriteTo(w)
	return Error.Wrap(err)
}

// WriteMetadataFile writes the catalog in the format named by the path
// extension.
func WriteMetadataFile(path string, cat *metadata.Catalog, prov Provenance) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format != FormatJSON && cat.Len() == 0 {
		return Error.New("no variables to write to %s", path)
	}
	return createFile(path, func(w io.Writer) error {
		switch format {
		case FormatCSV:
			return WriteMetadataCSV(w, cat)
		case FormatXLSX:
			return WriteMetadataXLSX(w, cat)
		default:
			return WriteMetadataJSON(w, cat, prov)
		}
	})
}
