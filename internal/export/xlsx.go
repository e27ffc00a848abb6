// Package export writes invoice lists and dashboard figures as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"efakture/internal/core"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"No.", "Issue date", "Due date", "Issuer PIB", "Recipient PIB", "Status", "Open", "Currency", "Total"}

// Filename returns the download name for a workbook created at t.
func Filename(t time.Time) string {
	return "invoices_" + t.Format(core.DateLayout) + ".xlsx"
}

// Workbook builds one sheet per visible invoice list plus a Summary sheet with
// the dashboard figures. Admins get a single "Invoices" sheet; companies get
// "Outbound" and "Inbound". The caller must Close the file.
func Workbook(actor core.Actor, list core.InvoiceList) (*excelize.File, error) {
	type sheet struct {
		name     string
		invoices []core.Invoice
	}
	sheets := core.MatchActor(actor,
		func(core.AdminActor) []sheet {
			return []sheet{{"Invoices", list.Items}}
		},
		func(core.CompanyActor) []sheet {
			return []sheet{{"Outbound", list.Outbound}, {"Inbound", list.Inbound}}
		},
		func(core.AnonymousActor) []sheet { return nil },
	)
	if sheets == nil {
		return nil, fmt.Errorf("export requires a signed-in user")
	}

	f := excelize.NewFile()
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create money style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeInvoices(f, s.name, s.invoices, moneyStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}

	dash := core.BuildDashboard(actor, nil, list)
	if err := writeSummary(f, dash, moneyStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	return f, nil
}

// Write streams the workbook for actor and list to w.
func Write(w io.Writer, actor core.Actor, list core.InvoiceList) error {
	f, err := Workbook(actor, list)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeInvoices(f *excelize.File, sheet string, invoices []core.Invoice, moneyStyle int) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, inv := range invoices {
		due := ""
		if inv.DueDate != nil {
			due = *inv.DueDate
		}
		open := "no"
		if inv.Status.IsOpen() {
			open = "yes"
		}
		row := []any{
			inv.Number,
			inv.IssueDate,
			due,
			inv.IssuerPIB,
			inv.RecipientPIB,
			string(inv.Status),
			open,
			inv.CurrencyCode(),
			excelize.Cell{StyleID: moneyStyle, Value: inv.TotalAmount.Decimal().Round(2).InexactFloat64()},
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "C", 12)
	_ = f.SetColWidth(sheet, "D", "E", 14)
	_ = f.SetColWidth(sheet, "I", "I", 14)
	return nil
}

func writeSummary(f *excelize.File, dash core.Dashboard, moneyStyle int) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	rows := [][]any{{"Section", "Invoices", "Open invoices", "Currency", "Total", "Open total"}}

	add := func(label string, s core.DirectionSummary) {
		currencies := s.Total.Currencies()
		if len(currencies) == 0 {
			rows = append(rows, []any{label, s.Count, s.OpenCount, string(core.DefaultCurrency), 0.0, 0.0})
			return
		}
		for _, cur := range currencies {
			rows = append(rows, []any{
				label, s.Count, s.OpenCount, cur,
				s.Total[cur].Round(2).InexactFloat64(),
				s.Open[cur].Round(2).InexactFloat64(),
			})
		}
	}
	if dash.Admin {
		add("All", dash.All)
	} else {
		add("Outbound", dash.Outbound)
		add("Inbound", dash.Inbound)
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(6, len(rows))
	if err := f.SetCellStyle(sheet, "E2", last, moneyStyle); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "E", "F", 14)
	return nil
}
