package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mem is an in-memory Store/JobStore with the same case-insensitive
// natural-key semantics as PG. It backs the pipeline tests and is handy for
// local development without a database.
type Mem struct {
	mu     sync.Mutex
	nextID int64

	Managements     []Management
	Areas           []Area
	ExpensePackages []ExpensePackage
	ExpenseConcepts []ExpenseConcept
	CostCenters     []CostCenter
	Articulos       []Articulo
	Supports        []Support
	SupportCCs      map[int64][]int64
	Jobs            []ImportJob
}

func NewMem() *Mem {
	return &Mem{SupportCCs: make(map[int64][]int64)}
}

var _ Store = (*Mem)(nil)
var _ JobStore = (*Mem)(nil)

func (s *Mem) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Mem) FindManagementByName(ctx context.Context, name string) (*Management, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Managements {
		if strings.EqualFold(s.Managements[i].Name, name) {
			m := s.Managements[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateManagement(ctx context.Context, m Management) (*Management, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	s.Managements = append(s.Managements, m)
	return &m, nil
}

func (s *Mem) FindAreaByName(ctx context.Context, name string) (*Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Areas {
		if strings.EqualFold(s.Areas[i].Name, name) {
			a := s.Areas[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateArea(ctx context.Context, a Area) (*Area, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.Areas = append(s.Areas, a)
	return &a, nil
}

func (s *Mem) UpdateArea(ctx context.Context, a Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Areas {
		if s.Areas[i].ID == a.ID {
			s.Areas[i] = a
			return nil
		}
	}
	return nil
}

func (s *Mem) FindExpensePackageByName(ctx context.Context, name string) (*ExpensePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ExpensePackages {
		if strings.EqualFold(s.ExpensePackages[i].Name, name) {
			p := s.ExpensePackages[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateExpensePackage(ctx context.Context, p ExpensePackage) (*ExpensePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.ExpensePackages = append(s.ExpensePackages, p)
	return &p, nil
}

func (s *Mem) FindExpenseConceptByName(ctx context.Context, packageID int64, name string) (*ExpenseConcept, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ExpenseConcepts {
		if s.ExpenseConcepts[i].PackageID == packageID && strings.EqualFold(s.ExpenseConcepts[i].Name, name) {
			c := s.ExpenseConcepts[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateExpenseConcept(ctx context.Context, c ExpenseConcept) (*ExpenseConcept, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.ExpenseConcepts = append(s.ExpenseConcepts, c)
	return &c, nil
}

func (s *Mem) FindCostCenterByCode(ctx context.Context, code string) (*CostCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.CostCenters {
		if strings.EqualFold(s.CostCenters[i].Code, code) {
			cc := s.CostCenters[i]
			return &cc, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateCostCenter(ctx context.Context, cc CostCenter) (*CostCenter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc.ID = s.id()
	s.CostCenters = append(s.CostCenters, cc)
	return &cc, nil
}

func (s *Mem) UpdateCostCenter(ctx context.Context, cc CostCenter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.CostCenters {
		if s.CostCenters[i].ID == cc.ID {
			s.CostCenters[i] = cc
			return nil
		}
	}
	return nil
}

func (s *Mem) FindArticuloByCode(ctx context.Context, code string) (*Articulo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Articulos {
		if strings.EqualFold(s.Articulos[i].Code, code) {
			a := s.Articulos[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateArticulo(ctx context.Context, a Articulo) (*Articulo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.Articulos = append(s.Articulos, a)
	return &a, nil
}

func (s *Mem) UpdateArticulo(ctx context.Context, a Articulo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Articulos {
		if s.Articulos[i].ID == a.ID {
			s.Articulos[i] = a
			return nil
		}
	}
	return nil
}

func (s *Mem) FindSupportByName(ctx context.Context, name string) (*Support, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Supports {
		if strings.EqualFold(s.Supports[i].Name, name) {
			sp := s.Supports[i]
			return &sp, nil
		}
	}
	return nil, nil
}

func (s *Mem) CreateSupport(ctx context.Context, sp Support, costCenterIDs []int64) (*Support, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sp.ID = s.id()
	s.Supports = append(s.Supports, sp)
	s.SupportCCs[sp.ID] = append([]int64(nil), costCenterIDs...)
	return &sp, nil
}

func (s *Mem) UpdateSupport(ctx context.Context, sp Support, replaceCostCenters bool, costCenterIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Supports {
		if s.Supports[i].ID == sp.ID {
			s.Supports[i] = sp
			break
		}
	}
	if replaceCostCenters {
		s.SupportCCs[sp.ID] = append([]int64(nil), costCenterIDs...)
	}
	return nil
}

func (s *Mem) ListSupportCostCenterIDs(ctx context.Context, supportID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := append([]int64(nil), s.SupportCCs[supportID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Mem) CreateImportJob(ctx context.Context, job ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.CreatedAt = time.Now()
	s.Jobs = append(s.Jobs, job)
	return nil
}

func (s *Mem) UpdateImportJob(ctx context.Context, job ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Jobs {
		if s.Jobs[i].ID == job.ID {
			job.CreatedAt = s.Jobs[i].CreatedAt
			job.FinishedAt = time.Now()
			s.Jobs[i] = job
			return nil
		}
	}
	return nil
}

func (s *Mem) ListImportJobs(ctx context.Context, limit, offset int32) ([]ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := append([]ImportJob(nil), s.Jobs...)
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if int(offset) >= len(jobs) {
		return nil, nil
	}
	jobs = jobs[offset:]
	if int(limit) < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Mem) GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Jobs {
		if s.Jobs[i].ID == id {
			j := s.Jobs[i]
			return &j, nil
		}
	}
	return nil, nil
}
