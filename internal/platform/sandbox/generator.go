package sandbox

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/dentboard/dentboard/internal/domain/clinic"
	"github.com/dentboard/dentboard/pkg/slotgrid"
)

var (
	firstNamesMale   = []string{"Иван", "Георги", "Димитър", "Петър", "Николай", "Стоян", "Христо", "Александър"}
	firstNamesFemale = []string{"Мария", "Елена", "Йорданка", "Десислава", "Гергана", "Петя", "Виктория", "Надежда"}
	lastNamesMale    = []string{"Иванов", "Георгиев", "Димитров", "Петров", "Николов", "Стоянов", "Христов", "Колев"}
	streets          = []string{"ул. Витоша", "бул. Черни връх", "ул. Граф Игнатиев", "бул. Христо Ботев", "ул. Шипка"}
	cities           = []string{"София", "Пловдив", "Варна", "Бургас"}
	visitNotes       = []string{"", "", "", "чувствителност от студено", "контрол след пломба", "носи снимка"}

	demoDentists = []DentistSeed{
		{Name: "Д-р Иванова", Specialty: "General Dentistry"},
		{Name: "Д-р Георгиев", Specialty: "Orthodontics"},
		{Name: "Д-р Петрова", Specialty: "Pediatric Dentistry"},
	}
)

// DemoConfig controls the size of a generated demo clinic.
type DemoConfig struct {
	Patients int   `json:"patients"`
	Days     int   `json:"days"`
	PerDay   int   `json:"per_day"`
	Seed     int64 `json:"seed"`
}

func (c DemoConfig) withDefaults() DemoConfig {
	if c.Patients <= 0 {
		c.Patients = 25
	}
	if c.Days <= 0 {
		c.Days = 5
	}
	if c.PerDay <= 0 {
		c.PerDay = 6
	}
	return c
}

// DataGenerator produces reproducible demo data.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) phone() string {
	return fmt.Sprintf("08%d %03d %03d", 7+g.rng.Intn(3), g.rng.Intn(1000), g.rng.Intn(1000))
}

// Patient returns a patient with a Bulgarian name. Female surnames take
// the -а ending.
func (g *DataGenerator) Patient() PatientSeed {
	last := g.pick(lastNamesMale)
	var first string
	if g.rng.Intn(2) == 0 {
		first = g.pick(firstNamesMale)
	} else {
		first = g.pick(firstNamesFemale)
		last += "а"
	}
	return PatientSeed{
		Name:    first + " " + last,
		Phone:   g.phone(),
		Address: fmt.Sprintf("%s, %s %d", g.pick(cities), g.pick(streets), 1+g.rng.Intn(120)),
	}
}

// Demo builds a seed with three dentists, cfg.Patients unique patients and
// up to cfg.PerDay appointments per dentist on each working day starting
// at from. Appointments sit on the slot grid and never overlap.
func (g *DataGenerator) Demo(cfg DemoConfig, from time.Time, hours slotgrid.WorkingHours) *SeedFile {
	cfg = cfg.withDefaults()
	hours = hours.OrDefault()

	f := &SeedFile{Dentists: append([]DentistSeed(nil), demoDentists...)}

	seen := make(map[string]bool)
	for attempts := 0; len(f.Patients) < cfg.Patients && attempts < cfg.Patients*20; attempts++ {
		p := g.Patient()
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		f.Patients = append(f.Patients, p)
	}
	if len(f.Patients) == 0 {
		return f
	}

	types := clinic.DefaultAppointmentTypes
	slots := slotgrid.GenerateSlots(hours)

	day := slotgrid.StartOfDay(from)
	for added := 0; added < cfg.Days; day = day.AddDate(0, 0, 1) {
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		added++
		date := slotgrid.DateKey(day)
		for _, d := range f.Dentists {
			free := 0
			for _, start := range slots {
				if free > 0 {
					free--
					continue
				}
				if countFor(f.Appointments, d.Name, date) >= cfg.PerDay || g.rng.Intn(3) != 0 {
					continue
				}
				duration := slotgrid.SlotMinutes * (1 + g.rng.Intn(2))
				if slotgrid.Minutes(start)+duration > hours.End*60 {
					continue
				}
				insurance := "private"
				if g.rng.Intn(4) == 0 {
					insurance = "nhif"
				}
				f.Appointments = append(f.Appointments, AppointmentSeed{
					Dentist:   d.Name,
					Patient:   f.Patients[g.rng.Intn(len(f.Patients))].Name,
					Date:      date,
					Start:     start,
					Duration:  duration,
					Type:      types[g.rng.Intn(len(types))].Key,
					Insurance: insurance,
					Notes:     g.pick(visitNotes),
				})
				free = duration/slotgrid.SlotMinutes - 1
			}
		}
	}
	return f
}

func countFor(items []AppointmentSeed, dentist, date string) int {
	n := 0
	for _, a := range items {
		if a.Dentist == dentist && a.Date == date {
			n++
		}
	}
	return n
}
