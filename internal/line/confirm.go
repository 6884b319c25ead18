package line

import (
	"fmt"
	"strconv"
	"strings"

	"pccmo/internal"
)

// FormatConfirmMessage builds the reply sent after an order item is saved.
func FormatConfirmMessage(item internal.OrderItem, id int64) string {
	lines := []string{"✅ บันทึกข้อมูลสำเร็จ"}

	if item.OrderDate != nil && *item.OrderDate != "" {
		lines = append(lines, "📅 วันที่: "+FormatThaiDate(*item.OrderDate))
	}
	if item.FactoryID != nil && *item.FactoryID != 0 {
		lines = append(lines, fmt.Sprintf("🏭 โรงงาน: %d", *item.FactoryID))
	}
	if item.ProductCode != nil && *item.ProductCode != "" {
		lines = append(lines, "📦 รหัส: "+*item.ProductCode)
	}
	if item.CementQuantity.Valid && !item.CementQuantity.Decimal.IsZero() {
		lines = append(lines, "🧱 ปูน: "+item.CementQuantity.Decimal.String()+" คิว")
	}
	lines = append(lines, fmt.Sprintf("🔖 ID: #%d", id))

	return strings.Join(lines, "\n")
}

// FormatThaiDate turns YYYY-MM-DD into d/m/yyyy in the Buddhist era.
func FormatThaiDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	year, errY := strconv.Atoi(parts[0])
	month, errM := strconv.Atoi(parts[1])
	day, errD := strconv.Atoi(parts[2])
	if errY != nil || errM != nil || errD != nil {
		return date
	}
	return fmt.Sprintf("%d/%d/%d", day, month, year+543)
}
