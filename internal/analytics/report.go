package analytics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// ActivityReport bundles the derived metrics exported for one device.
type ActivityReport struct {
	IMEI        string
	GeneratedAt time.Time
	Buckets     []HourBucket
	Uptime      UptimeReport
	Health      *HealthSnapshot
}

// BuildActivityPDF renders a minimal PDF activity report.
func BuildActivityPDF(report *ActivityReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Device Activity Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("IMEI: %s", report.IMEI))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Uptime Score: %.1f", report.Uptime.Score))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Packets: %d received / %d expected", report.Uptime.ReceivedPackets, report.Uptime.ExpectedPackets))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Dropouts: %d (largest gap %.0fs)", report.Uptime.Dropouts, report.Uptime.LargestGapSeconds))
	pdf.Ln(5)
	if report.Health != nil {
		pdf.Cell(0, 6, fmt.Sprintf("GPS Score: %.2f", report.Health.GpsScore))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Temperature: %s (%d)", report.Health.Temperature.Status, report.Health.Temperature.Index))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Hour", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Distance (km)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Cumulative (km)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, bucket := range report.Buckets {
		pdf.CellFormat(40, 6, bucket.HourLabel, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", bucket.DistanceKm), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.3f", bucket.CumulativeKm), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildActivityXLSX renders a minimal XLSX activity report.
func BuildActivityXLSX(report *ActivityReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	distanceSheet := "distance"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(distanceSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Device Activity Report")
	_ = f.SetCellValue(summarySheet, "A3", "IMEI")
	_ = f.SetCellValue(summarySheet, "B3", report.IMEI)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", report.GeneratedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Uptime Score")
	_ = f.SetCellValue(summarySheet, "B5", report.Uptime.Score)
	_ = f.SetCellValue(summarySheet, "A6", "Received Packets")
	_ = f.SetCellValue(summarySheet, "B6", report.Uptime.ReceivedPackets)
	_ = f.SetCellValue(summarySheet, "A7", "Expected Packets")
	_ = f.SetCellValue(summarySheet, "B7", report.Uptime.ExpectedPackets)
	_ = f.SetCellValue(summarySheet, "A8", "Dropouts")
	_ = f.SetCellValue(summarySheet, "B8", report.Uptime.Dropouts)
	if report.Health != nil {
		_ = f.SetCellValue(summarySheet, "A9", "GPS Score")
		_ = f.SetCellValue(summarySheet, "B9", report.Health.GpsScore)
		_ = f.SetCellValue(summarySheet, "A10", "Temperature Status")
		_ = f.SetCellValue(summarySheet, "B10", report.Health.Temperature.Status)
	}

	_ = f.SetCellValue(distanceSheet, "A1", "Hour")
	_ = f.SetCellValue(distanceSheet, "B1", "Distance (km)")
	_ = f.SetCellValue(distanceSheet, "C1", "Cumulative (km)")
	for i, bucket := range report.Buckets {
		row := i + 2
		_ = f.SetCellValue(distanceSheet, fmt.Sprintf("A%d", row), bucket.HourLabel)
		_ = f.SetCellValue(distanceSheet, fmt.Sprintf("B%d", row), bucket.DistanceKm)
		_ = f.SetCellValue(distanceSheet, fmt.Sprintf("C%d", row), bucket.CumulativeKm)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
