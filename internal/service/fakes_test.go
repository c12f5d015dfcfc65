package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// memStore is an in-memory stand-in for the remote store. Like the real one
// it has no transactions; every method is one independent operation. A
// failure registered under "op:key" (or "op:*") is returned instead of
// performing that operation.
type memStore struct {
	mu          sync.Mutex
	students    map[string]models.Student
	classes     map[string]models.Class
	subjects    map[string]models.Subject
	grades      map[string]models.Grade
	attendance  map[string]models.AttendanceRecord
	transfers   []models.TransferRecord
	enrollments map[string]models.Enrollment
	users       []models.User
	failures    map[string]error
	writes      int
	seq         int
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[string]models.Student{},
		classes:     map[string]models.Class{},
		subjects:    map[string]models.Subject{},
		grades:      map[string]models.Grade{},
		attendance:  map[string]models.AttendanceRecord{},
		enrollments: map[string]models.Enrollment{},
		failures:    map[string]error{},
	}
}

func (m *memStore) failOn(op, key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op+":"+key] = err
}

func (m *memStore) clearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = map[string]error{}
}

// check must be called with mu held.
func (m *memStore) check(op, key string) error {
	if err, ok := m.failures[op+":"+key]; ok {
		return err
	}
	if err, ok := m.failures[op+":*"]; ok {
		return err
	}
	return nil
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) addStudent(s models.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == "" {
		s.Status = models.StudentStatusActive
	}
	m.students[s.ID] = s
}

func (m *memStore) addClass(c models.Class) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.StudentIDs = append(pq.StringArray{}, c.StudentIDs...)
	m.classes[c.ID] = c
}

func (m *memStore) student(id string) models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.students[id]
}

func (m *memStore) classByName(name string) models.Class {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.classes {
		if c.Name == name {
			return c
		}
	}
	return models.Class{}
}

func (m *memStore) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

func copyClass(c models.Class) *models.Class {
	c.StudentIDs = append(pq.StringArray{}, c.StudentIDs...)
	return &c
}

type memStudents struct{ *memStore }

func (m memStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("students.List", "*"); err != nil {
		return nil, 0, err
	}
	var out []models.Student
	for _, s := range m.students {
		if filter.Class != "" && s.Class != filter.Class {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m memStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("students.FindByID", id); err != nil {
		return nil, err
	}
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m memStudents) FindByCPF(ctx context.Context, cpf string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.students {
		if s.CPF == cpf {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memStudents) ListIDsByClass(ctx context.Context, className string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, s := range m.students {
		if s.Class == className {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m memStudents) Create(ctx context.Context, student *models.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("students.Create", student.CPF); err != nil {
		return err
	}
	if student.ID == "" {
		student.ID = m.nextID("student")
	}
	m.writes++
	m.students[student.ID] = *student
	return nil
}

func (m memStudents) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("students.Update", id); err != nil {
		return nil, err
	}
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.CPF != nil {
		s.CPF = *patch.CPF
	}
	if patch.BirthDate != nil {
		s.BirthDate = patch.BirthDate
	}
	if patch.Class != nil {
		s.Class = *patch.Class
	}
	if patch.AverageGrade != nil {
		s.AverageGrade = *patch.AverageGrade
	}
	if patch.Attendance != nil {
		s.Attendance = *patch.Attendance
	}
	if patch.Status != nil {
		s.Status = *patch.Status
	}
	if patch.Guardians != nil {
		s.Guardians = patch.Guardians
	}
	m.writes++
	m.students[id] = s
	return &s, nil
}

func (m memStudents) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("students.Delete", id); err != nil {
		return err
	}
	if _, ok := m.students[id]; !ok {
		return sql.ErrNoRows
	}
	m.writes++
	delete(m.students, id)
	return nil
}

type memClasses struct{ *memStore }

func (m memClasses) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	all, err := m.ListAll(ctx)
	return all, len(all), err
}

func (m memClasses) ListAll(ctx context.Context) ([]models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Class, 0, len(m.classes))
	for _, c := range m.classes {
		out = append(out, *copyClass(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("classes.FindByID", id); err != nil {
		return nil, err
	}
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return copyClass(c), nil
}

func (m memClasses) FindByName(ctx context.Context, name string) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("classes.FindByName", name); err != nil {
		return nil, err
	}
	for _, c := range m.classes {
		if c.Name == name {
			return copyClass(c), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memClasses) Create(ctx context.Context, class *models.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if class.ID == "" {
		class.ID = m.nextID("class")
	}
	m.writes++
	m.classes[class.ID] = *copyClass(*class)
	return nil
}

func (m memClasses) Update(ctx context.Context, id string, patch models.ClassPatch) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.TeacherID != nil {
		c.TeacherID = patch.TeacherID
	}
	m.writes++
	m.classes[id] = c
	return copyClass(c), nil
}

func (m memClasses) UpdateRoster(ctx context.Context, id string, studentIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("classes.UpdateRoster", id); err != nil {
		return err
	}
	c, ok := m.classes[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.StudentIDs = append(pq.StringArray{}, studentIDs...)
	m.writes++
	m.classes[id] = c
	return nil
}

func (m memClasses) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[id]; !ok {
		return sql.ErrNoRows
	}
	m.writes++
	delete(m.classes, id)
	return nil
}

type memSubjects struct{ *memStore }

func (m memSubjects) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

type memGrades struct{ *memStore }

func gradeKey(studentID, subjectID string, year int) string {
	return fmt.Sprintf("%s|%s|%d", studentID, subjectID, year)
}

func (m memGrades) Upsert(ctx context.Context, grade *models.Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("grades.Upsert", grade.StudentID); err != nil {
		return err
	}
	key := gradeKey(grade.StudentID, grade.SubjectID, grade.AcademicYear)
	if existing, ok := m.grades[key]; ok {
		grade.ID = existing.ID
	} else if grade.ID == "" {
		grade.ID = m.nextID("grade")
	}
	m.writes++
	m.grades[key] = *grade
	return nil
}

func (m memGrades) ListByStudent(ctx context.Context, studentID string, academicYear int) ([]models.Grade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("grades.ListByStudent", studentID); err != nil {
		return nil, err
	}
	var out []models.Grade
	for _, g := range m.grades {
		if g.StudentID == studentID && g.AcademicYear == academicYear {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) putGrade(studentID, subjectID string, year int, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grades[gradeKey(studentID, subjectID, year)] = models.Grade{ID: m.nextID("grade"), StudentID: studentID, SubjectID: subjectID, AcademicYear: year, Grade: value}
}

type memAttendance struct{ *memStore }

func (m memAttendance) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("attendance.Upsert", record.StudentID); err != nil {
		return err
	}
	key := record.StudentID + "|" + record.Date.Format("2006-01-02")
	if existing, ok := m.attendance[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = m.nextID("attendance")
	}
	m.writes++
	m.attendance[key] = *record
	return nil
}

func (m memAttendance) Summary(ctx context.Context, studentID string) (models.AttendanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("attendance.Summary", studentID); err != nil {
		return models.AttendanceSummary{}, err
	}
	var summary models.AttendanceSummary
	for _, r := range m.attendance {
		if r.StudentID != studentID {
			continue
		}
		summary.Total++
		if r.Status == models.AttendancePresent {
			summary.Present++
		}
	}
	return summary, nil
}

type memTransfers struct{ *memStore }

func (m memTransfers) Create(ctx context.Context, record *models.TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("transfers.Create", record.StudentID); err != nil {
		return err
	}
	record.ID = m.nextID("transfer")
	m.writes++
	m.transfers = append(m.transfers, *record)
	return nil
}

func (m memTransfers) FindByID(ctx context.Context, id string) (*models.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.transfers {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memTransfers) FindMatching(ctx context.Context, studentID, fromClass, toClass string, date time.Time) (*models.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.transfers {
		if r.StudentID == studentID && r.FromClass == fromClass && r.ToClass == toClass && r.Date.Equal(date) {
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memTransfers) List(ctx context.Context, filter models.TransferFilter) ([]models.TransferRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TransferRecord
	for _, r := range m.transfers {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m memTransfers) Update(ctx context.Context, id string, patch models.TransferPatch) (*models.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.transfers {
		if r.ID != id {
			continue
		}
		if patch.FromClass != nil {
			r.FromClass = *patch.FromClass
		}
		if patch.ToClass != nil {
			r.ToClass = *patch.ToClass
		}
		if patch.Date != nil {
			r.Date = *patch.Date
		}
		if patch.Reason != nil {
			r.Reason = *patch.Reason
		}
		if patch.Observations != nil {
			r.Observations = *patch.Observations
		}
		m.writes++
		m.transfers[i] = r
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m memTransfers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.transfers {
		if r.ID == id {
			m.transfers = append(m.transfers[:i], m.transfers[i+1:]...)
			m.writes++
			return nil
		}
	}
	return sql.ErrNoRows
}

type memEnrollments struct{ *memStore }

func (m memEnrollments) Create(ctx context.Context, e *models.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.nextID("enrollment")
	}
	m.writes++
	m.enrollments[e.ID] = *e
	return nil
}

func (m memEnrollments) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (m memEnrollments) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m memEnrollments) UpdateDecision(ctx context.Context, d models.EnrollmentDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("enrollments.UpdateDecision", d.ID); err != nil {
		return err
	}
	e, ok := m.enrollments[d.ID]
	if !ok || e.Status != models.EnrollmentPending {
		return sql.ErrNoRows
	}
	e.Status = d.Status
	decidedAt, decidedBy := d.DecidedAt, d.DecidedBy
	e.DecidedAt = &decidedAt
	e.DecidedBy = &decidedBy
	e.StudentID = d.StudentID
	m.writes++
	m.enrollments[d.ID] = e
	return nil
}

type memUsers struct{ *memStore }

func (m memUsers) FindGuardiansByStudent(ctx context.Context, studentID string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleGuardian && u.StudentID != nil && *u.StudentID == studentID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m memUsers) FindGuardiansByName(ctx context.Context, name string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.Role == models.RoleGuardian && u.Name == name {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) addGuardian(id, name, studentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := models.User{ID: id, Name: name, Role: models.RoleGuardian}
	if studentID != "" {
		sid := studentID
		u.StudentID = &sid
	}
	m.users = append(m.users, u)
}

type sentNotification struct {
	UserID      string
	Title       string
	Description string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, title, description string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title, Description: description})
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

type recordedActivity struct {
	Actor   models.Actor
	Action  string
	Details map[string]interface{}
}

type recordingActivity struct {
	mu      sync.Mutex
	entries []recordedActivity
}

func (a *recordingActivity) Record(ctx context.Context, actor models.Actor, action string, details map[string]interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, recordedActivity{Actor: actor, Action: action, Details: details})
}

func (a *recordingActivity) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

var errRemote = errors.New("remote store unavailable")

var testActor = models.Actor{UserID: "u-teacher", Name: "Teacher", Role: models.RoleTeacher}
