package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/enrollment-ledger/internal/models"
	"github.com/noah-isme/enrollment-ledger/internal/repository"
	"github.com/noah-isme/enrollment-ledger/pkg/config"
	"github.com/noah-isme/enrollment-ledger/pkg/events"
)

// memStore backs every repository interface with maps. WithTx snapshots the
// maps and restores them when the callback fails.
type memStore struct {
	students    map[string]models.Student
	courses     map[string]models.Course
	enrollments map[string]models.Enrollment
	audit       []models.GradeAuditEntry
	nextAuditID int64
	nextEnroll  int

	existsErr error
	createErr error
	appendErr error
	recentErr error
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[string]models.Student{},
		courses:     map[string]models.Course{},
		enrollments: map[string]models.Enrollment{},
	}
}

func pairKey(studentID, courseID string) string { return studentID + "|" + courseID }

func (m *memStore) addStudent(id, name string) {
	m.students[id] = models.Student{ID: id, FullName: name, Email: strings.ToLower(id) + "@example.edu", EnrollmentYear: 2024}
}

func (m *memStore) addCourse(id, name string) {
	m.courses[id] = models.Course{ID: id, Name: name}
}

// WithTx implements txRunner.
func (m *memStore) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	students := cloneMap(m.students)
	courses := cloneMap(m.courses)
	enrollments := cloneMap(m.enrollments)
	audit := append([]models.GradeAuditEntry(nil), m.audit...)
	nextAudit := m.nextAuditID
	if err := fn(nil); err != nil {
		m.students, m.courses, m.enrollments, m.audit, m.nextAuditID = students, courses, enrollments, audit, nextAudit
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// enrollment repository

func (m *memStore) Create(ctx context.Context, e *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	key := pairKey(e.StudentID, e.CourseID)
	if _, ok := m.enrollments[key]; ok {
		return fmt.Errorf("create enrollment: %w", repository.ErrDuplicate)
	}
	if _, ok := m.students[e.StudentID]; !ok {
		return fmt.Errorf("create enrollment: %w", repository.ErrForeignKey)
	}
	if _, ok := m.courses[e.CourseID]; !ok {
		return fmt.Errorf("create enrollment: %w", repository.ErrForeignKey)
	}
	m.nextEnroll++
	e.ID = fmt.Sprintf("E%d", m.nextEnroll)
	m.enrollments[key] = *e
	return nil
}

func (m *memStore) Delete(ctx context.Context, studentID, courseID string) (int64, error) {
	key := pairKey(studentID, courseID)
	if _, ok := m.enrollments[key]; !ok {
		return 0, nil
	}
	delete(m.enrollments, key)
	return 1, nil
}

func (m *memStore) DeleteByStudent(ctx context.Context, ext sqlx.ExtContext, studentID string) (int64, error) {
	return m.deleteWhere(func(e models.Enrollment) bool { return e.StudentID == studentID }), nil
}

func (m *memStore) DeleteByCourse(ctx context.Context, ext sqlx.ExtContext, courseID string) (int64, error) {
	return m.deleteWhere(func(e models.Enrollment) bool { return e.CourseID == courseID }), nil
}

func (m *memStore) deleteWhere(match func(models.Enrollment) bool) int64 {
	var removed int64
	for key, e := range m.enrollments {
		if match(e) {
			delete(m.enrollments, key)
			removed++
		}
	}
	return removed
}

func (m *memStore) LockByPair(ctx context.Context, ext sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	e, ok := m.enrollments[pairKey(studentID, courseID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m *memStore) UpdateGrade(ctx context.Context, ext sqlx.ExtContext, id string, grade decimal.NullDecimal) error {
	for key, e := range m.enrollments {
		if e.ID == id {
			e.Grade = grade
			m.enrollments[key] = e
			return nil
		}
	}
	return nil
}

func (m *memStore) ListCoursesForStudent(ctx context.Context, studentID string) ([]models.StudentCourse, error) {
	out := []models.StudentCourse{}
	for _, e := range m.enrollments {
		if e.StudentID != studentID {
			continue
		}
		c := m.courses[e.CourseID]
		out = append(out, models.StudentCourse{CourseID: c.ID, CourseName: c.Name, Grade: e.Grade, EnrolledAt: e.EnrolledAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseName < out[j].CourseName })
	return out, nil
}

func (m *memStore) ListStudentsForCourse(ctx context.Context, courseID string) ([]models.CourseStudent, error) {
	out := []models.CourseStudent{}
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		s := m.students[e.StudentID]
		out = append(out, models.CourseStudent{StudentID: s.ID, FullName: s.FullName, Grade: e.Grade, EnrolledAt: e.EnrolledAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m *memStore) CountByCourse(ctx context.Context, courseID string) (int, error) {
	count := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) enrollmentCount() int { return len(m.enrollments) }

// audit repository

type memAudit struct{ *memStore }

func (a memAudit) Append(ctx context.Context, ext sqlx.ExtContext, entry *models.GradeAuditEntry) error {
	if a.appendErr != nil {
		return a.appendErr
	}
	a.nextAuditID++
	entry.ID = a.nextAuditID
	a.audit = append(a.audit, *entry)
	return nil
}

func (a memAudit) Recent(ctx context.Context, limit int) ([]models.GradeAuditRecord, error) {
	if a.recentErr != nil {
		return nil, a.recentErr
	}
	entries := append([]models.GradeAuditEntry(nil), a.audit...)
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ChangedAt.Equal(entries[j].ChangedAt) {
			return entries[i].ChangedAt.After(entries[j].ChangedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	records := make([]models.GradeAuditRecord, 0, len(entries))
	for _, e := range entries {
		record := models.GradeAuditRecord{GradeAuditEntry: e}
		if s, ok := a.students[e.StudentID]; ok {
			name := s.FullName
			record.StudentName = &name
		}
		if c, ok := a.courses[e.CourseID]; ok {
			name := c.Name
			record.CourseName = &name
		}
		records = append(records, record)
	}
	return records, nil
}

func (a memAudit) ListByPair(ctx context.Context, studentID, courseID string) ([]models.GradeAuditEntry, error) {
	out := []models.GradeAuditEntry{}
	for i := len(a.audit) - 1; i >= 0; i-- {
		if a.audit[i].StudentID == studentID && a.audit[i].CourseID == courseID {
			out = append(out, a.audit[i])
		}
	}
	return out, nil
}

// student directory

type memStudents struct{ *memStore }

func (s memStudents) Exists(ctx context.Context, id string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.students[id]
	return ok, nil
}

func (s memStudents) DisplayName(ctx context.Context, id string) (string, bool, error) {
	st, ok := s.students[id]
	return st.FullName, ok, nil
}

func (s memStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, len(out), nil
}

func (s memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	st, ok := s.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

func (s memStudents) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	for _, st := range s.students {
		if strings.EqualFold(st.Email, email) && st.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s memStudents) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = fmt.Sprintf("S%d", len(s.students)+100)
	}
	if _, ok := s.students[student.ID]; ok {
		return fmt.Errorf("create student: %w", repository.ErrDuplicate)
	}
	s.students[student.ID] = *student
	return nil
}

func (s memStudents) UpdateEmail(ctx context.Context, id, email string) (int64, error) {
	st, ok := s.students[id]
	if !ok {
		return 0, nil
	}
	st.Email = email
	s.students[id] = st
	return 1, nil
}

func (s memStudents) Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error) {
	if _, ok := s.students[id]; !ok {
		return 0, nil
	}
	delete(s.students, id)
	return 1, nil
}

// course directory

type memCourses struct{ *memStore }

func (c memCourses) Exists(ctx context.Context, id string) (bool, error) {
	if c.existsErr != nil {
		return false, c.existsErr
	}
	_, ok := c.courses[id]
	return ok, nil
}

func (c memCourses) DisplayName(ctx context.Context, id string) (string, bool, error) {
	course, ok := c.courses[id]
	return course.Name, ok, nil
}

func (c memCourses) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseSummary, int, error) {
	out := make([]models.CourseSummary, 0, len(c.courses))
	for _, course := range c.courses {
		count, _ := c.CountByCourse(ctx, course.ID)
		out = append(out, models.CourseSummary{Course: course, EnrollmentCount: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (c memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := c.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (c memCourses) ExistsByName(ctx context.Context, name string) (bool, error) {
	for _, course := range c.courses {
		if strings.EqualFold(course.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (c memCourses) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = fmt.Sprintf("C%d", len(c.courses)+100)
	}
	if _, ok := c.courses[course.ID]; ok {
		return fmt.Errorf("create course: %w", repository.ErrDuplicate)
	}
	c.courses[course.ID] = *course
	return nil
}

func (c memCourses) Delete(ctx context.Context, ext sqlx.ExtContext, id string) (int64, error) {
	if _, ok := c.courses[id]; !ok {
		return 0, nil
	}
	delete(c.courses, id)
	return 1, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// stepClock returns strictly increasing instants one second apart.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// engine wires every service over one memStore.
type engine struct {
	store     *memStore
	publisher *recordingPublisher
	ledger    *EnrollmentService
	grades    *GradeService
	audit     *AuditService
	queries   *QueryService
	directory *DirectoryService
	clock     *stepClock
}

func newEngine() *engine {
	store := newMemStore()
	publisher := &recordingPublisher{}
	clock := newStepClock()
	oracle := NewIdentityOracle(memStudents{store}, memCourses{store})

	ledger := NewEnrollmentService(store, oracle, publisher, nil, nil, nil)
	ledger.now = clock.Now
	grades := NewGradeService(store, memAudit{store}, store, publisher, config.DefaultGradeBounds(), nil, nil)
	grades.now = clock.Now
	audit := NewAuditService(memAudit{store}, config.AuditConfig{}, nil, nil)
	queries := NewQueryService(store, nil)
	directory := NewDirectoryService(memStudents{store}, memCourses{store}, ledger, store, nil, nil, nil)

	return &engine{
		store:     store,
		publisher: publisher,
		ledger:    ledger,
		grades:    grades,
		audit:     audit,
		queries:   queries,
		directory: directory,
		clock:     clock,
	}
}

func gradeOf(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}
