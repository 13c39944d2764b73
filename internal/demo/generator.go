// Package demo generates realistic sample uploads so a new practice account
// can try the service without real patient data.
package demo

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/samber/lo"
)

// Shape of the generated files.
const (
	PatientsPerDay  = 30
	PastDays        = 60
	FutureDays      = 30
	FirstPastID     = 1000
	FirstUpcomingID = 5000
)

var (
	upcomingHeader = []string{"id", "age", "days_lps", "employed", "benefits", "driver", "vdu", "varifocal", "high_rx", "appointment_date"}
	pastHeader     = append(append([]string{}, upcomingHeader...), "amount_spent")
	slotMinutes    = []int{0, 15, 30, 45}
)

// Generator produces demo CSVs. It is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// New returns a Generator seeded from the clock.
func New() *Generator {
	seed := uint64(time.Now().UnixNano())
	return NewWithSeed(seed, time.Now)
}

// NewWithSeed returns a deterministic Generator. now anchors the appointment dates.
func NewWithSeed(seed uint64, now func() time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

type patient struct {
	age       int
	daysLPS   int
	employed  bool
	benefits  bool
	driver    bool
	vdu       bool
	varifocal bool
	highRx    bool
}

// UpcomingCSV returns FutureDays of appointments starting today, and a file name.
func (g *Generator) UpcomingCSV() ([]byte, string, error) {
	today := g.today()
	id := FirstUpcomingID

	var records [][]string
	for offset := 0; offset < FutureDays; offset++ {
		date := today.AddDate(0, 0, offset)
		records = append(records, lo.Times(PatientsPerDay, func(int) []string {
			row := g.row(id, date)
			id++
			return row
		})...)
	}
	body, err := write(upcomingHeader, records)
	return body, fmt.Sprintf("demo_upcoming_%s.csv", today.Format("20060102")), err
}

// PastCSV returns PastDays of completed appointments ending yesterday, with
// the amount each patient spent, and a file name.
func (g *Generator) PastCSV() ([]byte, string, error) {
	today := g.today()
	id := FirstPastID

	var records [][]string
	for offset := PastDays; offset > 0; offset-- {
		date := today.AddDate(0, 0, -offset)
		records = append(records, lo.Times(PatientsPerDay, func(int) []string {
			row := append(g.row(id, date), formatAmount(g.purchaseAmount()))
			id++
			return row
		})...)
	}
	body, err := write(pastHeader, records)
	return body, fmt.Sprintf("demo_past_%s.csv", today.Format("20060102")), err
}

func (g *Generator) today() time.Time {
	y, m, d := g.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (g *Generator) row(id int, date time.Time) []string {
	p := g.patient()
	at := date.Add(time.Duration(g.between(9, 17))*time.Hour +
		time.Duration(slotMinutes[g.rng.IntN(len(slotMinutes))])*time.Minute)
	return []string{
		strconv.Itoa(id),
		strconv.Itoa(p.age),
		strconv.Itoa(p.daysLPS),
		yn(p.employed),
		yn(p.benefits),
		yn(p.driver),
		yn(p.vdu),
		yn(p.varifocal),
		yn(p.highRx),
		at.Format("2006-01-02 15:04:05"),
	}
}

func (g *Generator) patient() patient {
	age := g.age()
	p := patient{age: age}

	p.varifocal = age > 45 && g.chance(0.6)
	switch {
	case age < 25:
		p.employed = g.chance(0.5)
	case age < 65:
		p.employed = g.chance(0.85)
	default:
		p.employed = g.chance(0.15)
	}
	p.benefits = g.chance(0.35)
	switch {
	case age < 18:
	case age < 70:
		p.driver = g.chance(0.8)
	default:
		p.driver = g.chance(0.6)
	}
	p.vdu = p.employed && g.chance(0.7)
	p.highRx = g.chance(0.15 + float64(age)/100*0.15)

	// Recent, annual, bi-annual or long-time buyer, equally likely.
	switch g.rng.IntN(4) {
	case 0:
		p.daysLPS = g.between(30, 180)
	case 1:
		p.daysLPS = g.between(181, 365)
	case 2:
		p.daysLPS = g.between(366, 730)
	default:
		p.daysLPS = g.between(731, 1460)
	}
	return p
}

func (g *Generator) age() int {
	r := g.rng.Float64()
	switch {
	case r < 0.20:
		return g.between(18, 30)
	case r < 0.45:
		return g.between(31, 45)
	case r < 0.75:
		return g.between(46, 60)
	default:
		return g.between(61, 85)
	}
}

// purchaseAmount is always within [0, 500].
func (g *Generator) purchaseAmount() float64 {
	r := g.rng.Float64()
	switch {
	case r < 0.15:
		return 0
	case r < 0.45:
		return g.uniform(25, 75)
	case r < 0.80:
		return g.uniform(76, 150)
	case r < 0.95:
		return g.uniform(151, 300)
	default:
		return g.uniform(301, 500)
	}
}

func (g *Generator) between(from, to int) int {
	return from + g.rng.IntN(to-from+1)
}

// uniform draws from [from, to) rounded to 2 dp.
func (g *Generator) uniform(from, to float64) float64 {
	return math.Round((from+g.rng.Float64()*(to-from))*100) / 100
}

func (g *Generator) chance(p float64) bool {
	return g.rng.Float64() < p
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func write(header []string, records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("write demo csv: %w", err)
	}
	return buf.Bytes(), nil
}
