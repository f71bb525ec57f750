package services

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"planpilot/internal/database"
	"planpilot/internal/models"
	"planpilot/internal/progress"
)

// ProjectService implements the domain operations port over SQL storage.
// Every method returns an OperationResult: failures are messages for the
// chat reply, not errors, and each call is its own transactional boundary.
type ProjectService struct {
	db  *database.DB
	now func() time.Time
}

// NewProjectService creates a new project service
func NewProjectService(db *database.DB) *ProjectService {
	return &ProjectService{db: db, now: time.Now}
}

func failf(format string, args ...interface{}) models.OperationResult {
	return models.OperationResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func okf(data map[string]interface{}, format string, args ...interface{}) models.OperationResult {
	return models.OperationResult{Success: true, Message: fmt.Sprintf(format, args...), Data: data}
}

// --- projects ---

// CreateProject creates a project and any tasks carried in the payload.
func (s *ProjectService) CreateProject(p models.ProjectPayload) models.OperationResult {
	if p.ProjectName == "" {
		return failf("project name must not be empty")
	}

	if id, _ := s.projectIDByName(p.ProjectName); id != 0 {
		return failf("project '%s' already exists", p.ProjectName)
	}

	startDate, err := parseDate(p.StartDate, s.now())
	if err != nil {
		return failf("failed to create project: %v", err)
	}
	endDate, err := parseDate(p.EndDate, s.now())
	if err != nil {
		return failf("failed to create project: %v", err)
	}

	now := s.now()
	res, err := s.db.Exec(`
		INSERT INTO projects (name, description, progress, start_date, end_date, status, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?, ?, ?, ?)
	`, p.ProjectName, nullStr(p.Description), nullTime(startDate), nullTime(endDate), models.StatusPending, now, now)
	if err != nil {
		return failf("failed to create project: %v", err)
	}
	projectID, _ := res.LastInsertId()

	created := 0
	for _, t := range p.Tasks {
		if t.Name == "" {
			continue
		}
		if r := s.insertTask(projectID, t); !r.Success {
			log.Printf("⚠️ [PROJECT] Task '%s' not created with project '%s': %s", t.Name, p.ProjectName, r.Message)
			continue
		}
		created++
	}

	data := map[string]interface{}{"id": projectID, "name": p.ProjectName}
	if created > 0 {
		return okf(data, "project '%s' created with %d task(s)", p.ProjectName, created)
	}
	return okf(data, "project '%s' created", p.ProjectName)
}

// UpdateProject updates the mutable fields present in the payload.
func (s *ProjectService) UpdateProject(p models.ProjectPayload) models.OperationResult {
	if p.ProjectName == "" {
		return failf("project name must not be empty")
	}
	id, err := s.projectIDByName(p.ProjectName)
	if err != nil {
		return failf("failed to update project: %v", err)
	}
	if id == 0 {
		return failf("project '%s' does not exist", p.ProjectName)
	}

	sets := []string{"updated_at = ?"}
	args := []interface{}{s.now()}

	if p.Description != "" {
		sets = append(sets, "description = ?")
		args = append(args, p.Description)
	}
	if p.StartDate != "" {
		d, err := parseDate(p.StartDate, s.now())
		if err != nil {
			return failf("failed to update project: %v", err)
		}
		sets = append(sets, "start_date = ?")
		args = append(args, nullTime(d))
	}
	if p.EndDate != "" {
		d, err := parseDate(p.EndDate, s.now())
		if err != nil {
			return failf("failed to update project: %v", err)
		}
		sets = append(sets, "end_date = ?")
		args = append(args, nullTime(d))
	}
	if p.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, p.Status)
	}

	args = append(args, id)
	if _, err := s.db.Exec("UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return failf("failed to update project: %v", err)
	}

	return okf(map[string]interface{}{"id": id, "name": p.ProjectName}, "project '%s' updated", p.ProjectName)
}

// DeleteProject removes a project and, via cascade, its tasks.
func (s *ProjectService) DeleteProject(name string) models.OperationResult {
	if name == "" {
		return failf("project name must not be empty")
	}
	id, err := s.projectIDByName(name)
	if err != nil {
		return failf("failed to delete project: %v", err)
	}
	if id == 0 {
		return failf("project '%s' does not exist", name)
	}

	// SQLite only enforces ON DELETE CASCADE with foreign_keys on; delete
	// tasks explicitly so behavior matches across drivers.
	if _, err := s.db.Exec("DELETE FROM tasks WHERE project_id = ?", id); err != nil {
		return failf("failed to delete project tasks: %v", err)
	}
	if _, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id); err != nil {
		return failf("failed to delete project: %v", err)
	}

	return okf(nil, "project '%s' deleted", name)
}

// QueryProject fetches a project with its tasks.
func (s *ProjectService) QueryProject(name string) models.OperationResult {
	project, err := s.getProjectByName(name)
	if err != nil {
		return failf("failed to query project: %v", err)
	}
	if project == nil {
		return failf("project '%s' does not exist", name)
	}

	tasks, err := s.tasksForProject(project.ID)
	if err != nil {
		return failf("failed to query project tasks: %v", err)
	}
	project.Tasks = tasks

	return okf(map[string]interface{}{
		"project":  project,
		"progress": project.Progress,
		"status":   project.Status,
	}, "project '%s' found", name)
}

// RefreshProject recomputes a project's progress and rolled-up dates from its
// tasks and persists the result.
func (s *ProjectService) RefreshProject(name string) models.OperationResult {
	project, err := s.getProjectByName(name)
	if err != nil {
		return failf("failed to refresh project: %v", err)
	}
	if project == nil {
		return failf("project '%s' does not exist", name)
	}

	tasks, err := s.tasksForProject(project.ID)
	if err != nil {
		return failf("failed to refresh project: %v", err)
	}

	pct := progress.ProjectProgress(tasks, s.now())
	start, end := rollupDates(tasks)

	sets := []string{"progress = ?", "updated_at = ?"}
	args := []interface{}{pct, s.now()}
	if start != nil {
		sets = append(sets, "start_date = ?")
		args = append(args, *start)
	}
	if end != nil {
		sets = append(sets, "end_date = ?")
		args = append(args, *end)
	}
	args = append(args, project.ID)

	if _, err := s.db.Exec("UPDATE projects SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return failf("failed to refresh project: %v", err)
	}

	return okf(map[string]interface{}{"progress": pct}, "project '%s' progress refreshed to %.1f%%", name, pct)
}

// RefreshAllProjects recomputes progress for every project. Used by the
// scheduled maintenance job.
func (s *ProjectService) RefreshAllProjects() error {
	rows, err := s.db.Query("SELECT name FROM projects")
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		if r := s.RefreshProject(name); !r.Success {
			log.Printf("⚠️ [PROJECT] Refresh failed for '%s': %s", name, r.Message)
		}
	}
	return nil
}

// ListProjects returns a page of projects with task counts.
func (s *ProjectService) ListProjects(status string, page, pageSize int) ([]models.Project, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	where := ""
	var args []interface{}
	if status != "" {
		where = " WHERE p.status = ?"
		args = append(args, status)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects p"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT p.id, p.name, p.description, p.progress, p.start_date, p.end_date,
		       p.status, p.category_id, c.name,
		       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id),
		       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id AND t.status = 'completed'),
		       p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN project_categories c ON c.id = p.category_id` + where + `
		ORDER BY p.id LIMIT ? OFFSET ?`
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var desc, catName sql.NullString
		var start, end sql.NullTime
		var catID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Name, &desc, &p.Progress, &start, &end,
			&p.Status, &catID, &catName, &p.TaskCount, &p.CompletedTaskCount,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		p.Description = desc.String
		p.CategoryName = catName.String
		if start.Valid {
			p.StartDate = &start.Time
		}
		if end.Valid {
			p.EndDate = &end.Time
		}
		if catID.Valid {
			p.CategoryID = &catID.Int64
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

// --- tasks ---

// CreateTask adds one task to an existing project. Duplicate names within a
// project are rejected so re-proposed batches fail per item, not wholesale.
func (s *ProjectService) CreateTask(projectName string, t models.TaskPayload) models.OperationResult {
	if projectName == "" {
		return failf("project name must not be empty")
	}
	if t.Name == "" {
		return failf("task name must not be empty")
	}

	projectID, err := s.projectIDByName(projectName)
	if err != nil {
		return failf("failed to create task: %v", err)
	}
	if projectID == 0 {
		return failf("project '%s' does not exist", projectName)
	}

	var existing int64
	err = s.db.QueryRow("SELECT id FROM tasks WHERE project_id = ? AND name = ?", projectID, t.Name).Scan(&existing)
	if err == nil {
		return failf("task '%s' already exists in project '%s'", t.Name, projectName)
	}
	if err != sql.ErrNoRows {
		return failf("failed to create task: %v", err)
	}

	if r := s.insertTask(projectID, t); !r.Success {
		return r
	}
	return okf(nil, "task '%s' created in project '%s'", t.Name, projectName)
}

func (s *ProjectService) insertTask(projectID int64, t models.TaskPayload) models.OperationResult {
	plannedStart, err := parseDate(t.PlannedStart(), s.now())
	if err != nil {
		return failf("failed to create task: %v", err)
	}
	plannedEnd, err := parseDate(t.PlannedEnd(), s.now())
	if err != nil {
		return failf("failed to create task: %v", err)
	}
	if plannedStart != nil && plannedEnd != nil && plannedStart.After(*plannedEnd) {
		return failf("task '%s' rejected: planned start date is after planned end date", t.Name)
	}

	status := t.Status
	if status == "" {
		status = models.StatusPending
	}

	var order int
	_ = s.db.QueryRow("SELECT COALESCE(MAX(task_order), 0) + 1 FROM tasks WHERE project_id = ?", projectID).Scan(&order)

	now := s.now()
	_, err = s.db.Exec(`
		INSERT INTO tasks (project_id, name, description, assignee, planned_start_date, planned_end_date,
		                   progress, deliverable, status, priority, task_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)
	`, projectID, t.Name, nullStr(t.Description), nullStr(t.Assignee),
		nullTime(plannedStart), nullTime(plannedEnd), nullStr(t.Deliverable),
		status, priorityValue(t.Priority), order, now, now)
	if err != nil {
		return failf("failed to create task: %v", err)
	}
	return okf(nil, "task '%s' created", t.Name)
}

// UpdateTask applies the fields present in the payload to one task, then
// recomputes the task's progress. Progress is never taken from the payload;
// it is always derived from dates.
func (s *ProjectService) UpdateTask(projectName, taskName string, t models.TaskPayload) models.OperationResult {
	if projectName == "" || taskName == "" {
		return failf("project and task name must not be empty")
	}

	projectID, err := s.projectIDByName(projectName)
	if err != nil {
		return failf("failed to update task: %v", err)
	}
	if projectID == 0 {
		return failf("project '%s' does not exist", projectName)
	}

	task, err := s.getTask(projectID, taskName)
	if err != nil {
		return failf("failed to update task: %v", err)
	}
	if task == nil {
		return failf("task '%s' does not exist in project '%s'", taskName, projectName)
	}

	if t.Assignee != "" {
		task.Assignee = t.Assignee
	}
	if t.Description != "" {
		task.Description = t.Description
	}
	if t.Deliverable != "" {
		task.Deliverable = t.Deliverable
	}
	if t.Status != "" {
		task.Status = t.Status
	}
	if t.Priority != "" {
		task.Priority = priorityValue(t.Priority)
	}
	if v := t.PlannedStart(); v != "" {
		d, err := parseDate(v, s.now())
		if err != nil {
			return failf("failed to update task: %v", err)
		}
		task.PlannedStartDate = d
	}
	if v := t.PlannedEnd(); v != "" {
		d, err := parseDate(v, s.now())
		if err != nil {
			return failf("failed to update task: %v", err)
		}
		task.PlannedEndDate = d
	}
	// Actual dates are pointers in the payload: an explicit null clears the
	// stored value (reopening a finished task).
	if t.ActualStartDate != nil {
		if *t.ActualStartDate == "" {
			task.ActualStartDate = nil
		} else {
			d, err := parseDate(*t.ActualStartDate, s.now())
			if err != nil {
				return failf("failed to update task: %v", err)
			}
			task.ActualStartDate = d
		}
	}
	if t.ActualEndDate != nil {
		if *t.ActualEndDate == "" {
			task.ActualEndDate = nil
		} else {
			d, err := parseDate(*t.ActualEndDate, s.now())
			if err != nil {
				return failf("failed to update task: %v", err)
			}
			task.ActualEndDate = d
		}
	}

	if task.PlannedStartDate != nil && task.PlannedEndDate != nil && task.PlannedStartDate.After(*task.PlannedEndDate) {
		return failf("task update rejected: planned start date is after planned end date")
	}
	if task.ActualStartDate != nil && task.ActualEndDate != nil && task.ActualStartDate.After(*task.ActualEndDate) {
		return failf("task update rejected: actual start date is after actual end date")
	}

	task.Progress = progress.TaskProgress(*task, s.now())

	_, err = s.db.Exec(`
		UPDATE tasks SET description = ?, assignee = ?, planned_start_date = ?, planned_end_date = ?,
		       actual_start_date = ?, actual_end_date = ?, progress = ?, deliverable = ?,
		       status = ?, priority = ?, updated_at = ?
		WHERE id = ?
	`, nullStr(task.Description), nullStr(task.Assignee),
		nullTime(task.PlannedStartDate), nullTime(task.PlannedEndDate),
		nullTime(task.ActualStartDate), nullTime(task.ActualEndDate),
		task.Progress, nullStr(task.Deliverable), task.Status, task.Priority, s.now(), task.ID)
	if err != nil {
		return failf("failed to update task: %v", err)
	}

	return okf(map[string]interface{}{"progress": task.Progress},
		"task '%s' in project '%s' updated", taskName, projectName)
}

// DeleteTask removes one task from a project.
func (s *ProjectService) DeleteTask(projectName, taskName string) models.OperationResult {
	if projectName == "" || taskName == "" {
		return failf("project and task name must not be empty")
	}

	projectID, err := s.projectIDByName(projectName)
	if err != nil {
		return failf("failed to delete task: %v", err)
	}
	if projectID == 0 {
		return failf("project '%s' does not exist", projectName)
	}

	res, err := s.db.Exec("DELETE FROM tasks WHERE project_id = ? AND name = ?", projectID, taskName)
	if err != nil {
		return failf("failed to delete task: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return failf("task '%s' does not exist in project '%s'", taskName, projectName)
	}

	return okf(nil, "task '%s' deleted from project '%s'", taskName, projectName)
}

// MoveTask shifts a task up or down within its project's ordering.
func (s *ProjectService) MoveTask(projectID, taskID int64, direction string) models.OperationResult {
	if direction != "up" && direction != "down" {
		return failf("direction must be 'up' or 'down'")
	}

	var order int
	err := s.db.QueryRow("SELECT task_order FROM tasks WHERE id = ? AND project_id = ?", taskID, projectID).Scan(&order)
	if err == sql.ErrNoRows {
		return failf("task does not exist")
	}
	if err != nil {
		return failf("failed to move task: %v", err)
	}

	cmp, ord := "<", "DESC"
	if direction == "down" {
		cmp, ord = ">", "ASC"
	}

	var neighborID int64
	var neighborOrder int
	err = s.db.QueryRow(fmt.Sprintf(
		"SELECT id, task_order FROM tasks WHERE project_id = ? AND task_order %s ? ORDER BY task_order %s LIMIT 1",
		cmp, ord), projectID, order).Scan(&neighborID, &neighborOrder)
	if err == sql.ErrNoRows {
		return failf("task is already at the %s", map[string]string{"up": "top", "down": "bottom"}[direction])
	}
	if err != nil {
		return failf("failed to move task: %v", err)
	}

	if _, err := s.db.Exec("UPDATE tasks SET task_order = ? WHERE id = ?", neighborOrder, taskID); err != nil {
		return failf("failed to move task: %v", err)
	}
	if _, err := s.db.Exec("UPDATE tasks SET task_order = ? WHERE id = ?", order, neighborID); err != nil {
		return failf("failed to move task: %v", err)
	}

	return okf(nil, "task moved %s", direction)
}

// --- categories ---

// CreateCategory creates a project category.
func (s *ProjectService) CreateCategory(c models.CategoryPayload) models.OperationResult {
	name := c.ResolvedName()
	if name == "" {
		return failf("category name must not be empty")
	}

	if id, _ := s.categoryIDByName(name); id != 0 {
		return failf("category '%s' already exists", name)
	}

	now := s.now()
	_, err := s.db.Exec(`
		INSERT INTO project_categories (name, description, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, name, nullStr(c.Description), now, now)
	if err != nil {
		return failf("failed to create category: %v", err)
	}

	return okf(nil, "category '%s' created", name)
}

// UpdateCategory updates a category's description.
func (s *ProjectService) UpdateCategory(c models.CategoryPayload) models.OperationResult {
	name := c.ResolvedName()
	if name == "" {
		return failf("category name must not be empty")
	}
	id, err := s.categoryIDByName(name)
	if err != nil {
		return failf("failed to update category: %v", err)
	}
	if id == 0 {
		return failf("category '%s' does not exist", name)
	}

	if c.Description != "" {
		if _, err := s.db.Exec("UPDATE project_categories SET description = ?, updated_at = ? WHERE id = ?",
			c.Description, s.now(), id); err != nil {
			return failf("failed to update category: %v", err)
		}
	}

	return okf(nil, "category '%s' updated", name)
}

// DeleteCategory removes a category, refusing while projects still reference it.
func (s *ProjectService) DeleteCategory(name string) models.OperationResult {
	if name == "" {
		return failf("category name must not be empty")
	}
	id, err := s.categoryIDByName(name)
	if err != nil {
		return failf("failed to delete category: %v", err)
	}
	if id == 0 {
		return failf("category '%s' does not exist", name)
	}

	var related int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE category_id = ?", id).Scan(&related); err != nil {
		return failf("failed to delete category: %v", err)
	}
	if related > 0 {
		return failf("category '%s' still has %d project(s) and cannot be deleted", name, related)
	}

	if _, err := s.db.Exec("DELETE FROM project_categories WHERE id = ?", id); err != nil {
		return failf("failed to delete category: %v", err)
	}

	return okf(nil, "category '%s' deleted", name)
}

// QueryCategory fetches one category by name, or lists all when name is empty.
func (s *ProjectService) QueryCategory(name string) models.OperationResult {
	if name == "" {
		categories, err := s.ListCategories()
		if err != nil {
			return failf("failed to list categories: %v", err)
		}
		return okf(map[string]interface{}{"categories": categories}, "found %d categories", len(categories))
	}

	id, err := s.categoryIDByName(name)
	if err != nil {
		return failf("failed to query category: %v", err)
	}
	if id == 0 {
		return failf("category '%s' does not exist", name)
	}

	var count int
	_ = s.db.QueryRow("SELECT COUNT(*) FROM projects WHERE category_id = ?", id).Scan(&count)

	return okf(map[string]interface{}{
		"name":          name,
		"project_count": count,
	}, "category '%s' found", name)
}

// ListCategories returns all categories with their project counts.
func (s *ProjectService) ListCategories() ([]models.Category, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, c.description,
		       (SELECT COUNT(*) FROM projects p WHERE p.category_id = c.id),
		       c.created_at, c.updated_at
		FROM project_categories c ORDER BY c.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		var desc sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &desc, &c.ProjectCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Description = desc.String
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// AssignCategory links a project to a category. When either side is missing
// the result carries fuzzy-match suggestions so the chat layer can offer
// alternatives instead of a dead end.
func (s *ProjectService) AssignCategory(projectName, categoryName string) models.OperationResult {
	if projectName == "" {
		return failf("project name must not be empty")
	}
	if categoryName == "" {
		return failf("category name must not be empty")
	}

	projectID, err := s.projectIDByName(projectName)
	if err != nil {
		return failf("failed to assign category: %v", err)
	}
	if projectID == 0 {
		return models.OperationResult{
			Success: false,
			Message: fmt.Sprintf("project '%s' does not exist", projectName),
			Data: map[string]interface{}{
				"suggestions":    s.similarNames("projects", projectName),
				"field":          "project_name",
				"original_value": projectName,
			},
		}
	}

	categoryID, err := s.categoryIDByName(categoryName)
	if err != nil {
		return failf("failed to assign category: %v", err)
	}
	if categoryID == 0 {
		return models.OperationResult{
			Success: false,
			Message: fmt.Sprintf("category '%s' does not exist", categoryName),
			Data: map[string]interface{}{
				"suggestions":    s.similarNames("project_categories", categoryName),
				"field":          "category_name",
				"original_value": categoryName,
			},
		}
	}

	if _, err := s.db.Exec("UPDATE projects SET category_id = ?, updated_at = ? WHERE id = ?",
		categoryID, s.now(), projectID); err != nil {
		return failf("failed to assign category: %v", err)
	}

	return okf(nil, "project '%s' assigned to category '%s'", projectName, categoryName)
}

// similarNames is the fuzzy lookup behind did-you-mean suggestions: substring
// LIKE search first, then the full name list as a last-resort aid. The
// full-list fallback is deliberate (small deployments) even though it would
// be noisy at scale.
func (s *ProjectService) similarNames(table, name string) []string {
	rows, err := s.db.Query(
		fmt.Sprintf("SELECT name FROM %s WHERE name LIKE ? ORDER BY name", table),
		"%"+name+"%")
	if err != nil {
		log.Printf("⚠️ [PROJECT] Similar-name lookup failed: %v", err)
		return nil
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return names
		}
		names = append(names, n)
	}

	if len(names) == 0 {
		all, err := s.db.Query(fmt.Sprintf("SELECT name FROM %s ORDER BY name", table))
		if err != nil {
			return nil
		}
		defer all.Close()
		for all.Next() {
			var n string
			if err := all.Scan(&n); err != nil {
				return names
			}
			names = append(names, n)
		}
	}
	return names
}

// --- lookups and scanning helpers ---

func (s *ProjectService) projectIDByName(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM projects WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (s *ProjectService) categoryIDByName(name string) (int64, error) {
	var id int64
	err := s.db.QueryRow("SELECT id FROM project_categories WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return id, err
}

func (s *ProjectService) getProjectByName(name string) (*models.Project, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, progress, start_date, end_date, status, category_id, created_at, updated_at
		FROM projects WHERE name = ?`, name)

	var p models.Project
	var desc sql.NullString
	var start, end sql.NullTime
	var catID sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &desc, &p.Progress, &start, &end, &p.Status, &catID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	if start.Valid {
		p.StartDate = &start.Time
	}
	if end.Valid {
		p.EndDate = &end.Time
	}
	if catID.Valid {
		p.CategoryID = &catID.Int64
	}
	return &p, nil
}

// GetProjectByID fetches a project with its tasks for the HTTP layer.
func (s *ProjectService) GetProjectByID(id int64) (*models.Project, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, progress, start_date, end_date, status, category_id, created_at, updated_at
		FROM projects WHERE id = ?`, id)

	var p models.Project
	var desc sql.NullString
	var start, end sql.NullTime
	var catID sql.NullInt64
	err := row.Scan(&p.ID, &p.Name, &desc, &p.Progress, &start, &end, &p.Status, &catID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Description = desc.String
	if start.Valid {
		p.StartDate = &start.Time
	}
	if end.Valid {
		p.EndDate = &end.Time
	}
	if catID.Valid {
		p.CategoryID = &catID.Int64
	}

	tasks, err := s.tasksForProject(p.ID)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return &p, nil
}

func (s *ProjectService) getTask(projectID int64, name string) (*models.Task, error) {
	row := s.db.QueryRow(`
		SELECT id, project_id, name, description, assignee, planned_start_date, planned_end_date,
		       actual_start_date, actual_end_date, progress, deliverable, status, priority, task_order,
		       created_at, updated_at
		FROM tasks WHERE project_id = ? AND name = ?`, projectID, name)

	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

func (s *ProjectService) tasksForProject(projectID int64) ([]models.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, project_id, name, description, assignee, planned_start_date, planned_end_date,
		       actual_start_date, actual_end_date, progress, deliverable, status, priority, task_order,
		       created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY task_order, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var desc, assignee, deliverable sql.NullString
	var ps, pe, as, ae sql.NullTime
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &desc, &assignee, &ps, &pe, &as, &ae,
		&t.Progress, &deliverable, &t.Status, &t.Priority, &t.Order, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.Assignee = assignee.String
	t.Deliverable = deliverable.String
	if ps.Valid {
		t.PlannedStartDate = &ps.Time
	}
	if pe.Valid {
		t.PlannedEndDate = &pe.Time
	}
	if as.Valid {
		t.ActualStartDate = &as.Time
	}
	if ae.Valid {
		t.ActualEndDate = &ae.Time
	}
	return &t, nil
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func priorityValue(priority string) int {
	switch strings.ToLower(priority) {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// parseDate accepts the date shapes LLMs actually produce: RFC 3339, a bare
// YYYY-MM-DD, or a month-day pair (e.g. "2-27") completed with the current
// year. Empty input parses to nil.
func parseDate(value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}

	parts := strings.Split(value, "-")
	if len(parts) == 2 {
		full := fmt.Sprintf("%d-%s-%s", now.Year(), pad2(parts[0]), pad2(parts[1]))
		if t, err := time.Parse("2006-01-02", full); err == nil {
			return &t, nil
		}
	}

	return nil, fmt.Errorf("unable to parse date %q", value)
}

// rollupDates derives a project's date span from its tasks: earliest planned
// start to latest planned end. Nil when no task carries the respective date.
func rollupDates(tasks []models.Task) (*time.Time, *time.Time) {
	var start, end *time.Time
	for i := range tasks {
		if s := tasks[i].PlannedStartDate; s != nil && (start == nil || s.Before(*start)) {
			start = s
		}
		if e := tasks[i].PlannedEndDate; e != nil && (end == nil || e.After(*end)) {
			end = e
		}
	}
	return start, end
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
