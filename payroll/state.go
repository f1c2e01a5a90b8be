package payroll

import "sort"

// State is a detached copy of everything the Ledger owns except its
// collaborators (fund, clock, location). The journal persists it and
// Restore rebuilds a Ledger from it.
type State struct {
	Admin                Identity      `json:"admin"`
	MaxChangeWorkingDays int           `json:"max_change_working_days"`
	CheckIn              TimeWindow    `json:"check_in"`
	CheckOut             TimeWindow    `json:"check_out"`
	Employees            []Employee    `json:"employees"`
	Records              []RecordEntry `json:"records"`
	Changes              []ChangeEntry `json:"changes,omitempty"`
}

// ChangeEntry is one manager change counter.
type ChangeEntry struct {
	Employee Identity `json:"employee"`
	Period   Period   `json:"period"`
	Days     int      `json:"days"`
}

// State returns a deep copy of the ledger state, in a stable order.
func (l *Ledger) State() State {
	st := State{
		Admin:                l.admin,
		MaxChangeWorkingDays: l.maxChangeWorkingDays,
		CheckIn:              l.checkIn,
		CheckOut:             l.checkOut,
		Employees:            l.Employees(),
	}
	for k, r := range l.records {
		st.Records = append(st.Records, RecordEntry{Employee: k.Employee, Period: k.Period, Record: r})
	}
	sortEntries(st.Records)
	for k, n := range l.changes {
		st.Changes = append(st.Changes, ChangeEntry{Employee: k.Employee, Period: k.Period, Days: n})
	}
	sortChanges(st.Changes)
	return st
}

// Restore builds a ledger from a saved State. Admin, quota and windows
// come from the state; Location, Fund and Clock come from cfg.
func Restore(cfg Config, st State) (*Ledger, error) {
	cfg.Admin = st.Admin
	cfg.MaxChangeWorkingDays = st.MaxChangeWorkingDays
	cfg.CheckIn = st.CheckIn
	cfg.CheckOut = st.CheckOut
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	l.load(st)
	return l, nil
}

// Reset replaces the ledger's state in place. The service uses it to
// undo an operation whose journal entry could not be written.
func (l *Ledger) Reset(st State) {
	l.admin = st.Admin
	l.maxChangeWorkingDays = st.MaxChangeWorkingDays
	l.checkIn = st.CheckIn
	l.checkOut = st.CheckOut
	l.load(st)
}

func (l *Ledger) load(st State) {
	l.employees = make(map[Identity]Employee, len(st.Employees))
	for _, e := range st.Employees {
		l.employees[e.ID] = e
	}
	l.records = make(map[recordKey]MonthlyRecord, len(st.Records))
	for _, r := range st.Records {
		l.records[recordKey{Employee: r.Employee, Period: r.Period}] = r.Record
	}
	l.changes = make(map[recordKey]int, len(st.Changes))
	for _, c := range st.Changes {
		l.changes[recordKey{Employee: c.Employee, Period: c.Period}] = c.Days
	}
}

func sortChanges(changes []ChangeEntry) {
	sort.Slice(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		return a.Employee < b.Employee
	})
}
