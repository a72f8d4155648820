package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rongwang/staff-scheduler/internal/models"
	"github.com/rongwang/staff-scheduler/internal/repository"
)

// spentStatuses are the claim states that count against a budget
var spentStatuses = []string{models.ExpenseStatusApproved, models.ExpenseStatusReimbursed}

// ListExpenseCategories returns active categories, or every category when
// all is set, which needs finance.manage
func (s *DefaultService) ListExpenseCategories(ctx context.Context, actorID string, all bool) ([]models.ExpenseCategory, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceView)
	if err != nil {
		return nil, err
	}
	if all {
		if err := a.require(models.PermFinanceManage); err != nil {
			return nil, err
		}
	}
	out, err := s.repo.ListExpenseCategories(ctx, !all)
	if err != nil {
		return nil, fmt.Errorf("error listing expense categories: %w", err)
	}
	return out, nil
}

func (s *DefaultService) CreateExpenseCategory(ctx context.Context, actorID string, req models.CreateExpenseCategoryRequest) (*models.ExpenseCategory, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceManage)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationError("category name is required")
	}
	if req.BudgetCents != nil && *req.BudgetCents < 0 {
		return nil, validationError("budget must not be negative")
	}

	c := &models.ExpenseCategory{Name: name, IsActive: true, BudgetCents: req.BudgetCents}
	if err := s.repo.CreateExpenseCategory(ctx, c); err != nil {
		return nil, wrapRepoError("creating expense category", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "expense_category.created",
		EntityType: "expense_category",
		EntityID:   c.ID,
		Details:    map[string]interface{}{"name": c.Name, "budgetCents": c.BudgetCents},
	})
	return c, nil
}

// ToggleExpenseCategory flips a category between active and inactive.
// Inactive categories keep their history but accept no new claims.
func (s *DefaultService) ToggleExpenseCategory(ctx context.Context, actorID, id string) (*models.ExpenseCategory, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceManage)
	if err != nil {
		return nil, err
	}

	c, err := s.repo.GetExpenseCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting expense category: %w", err)
	}
	if c == nil {
		return nil, notFound("expense category")
	}
	c.IsActive = !c.IsActive
	if err := s.repo.UpdateExpenseCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("error updating expense category: %w", err)
	}

	action := "expense_category.deactivated"
	if c.IsActive {
		action = "expense_category.activated"
	}
	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     action,
		EntityType: "expense_category",
		EntityID:   c.ID,
		Details:    map[string]interface{}{"name": c.Name},
	})
	return c, nil
}

// SetCategoryBudget sets or, with nil, clears a category's monthly budget
func (s *DefaultService) SetCategoryBudget(ctx context.Context, actorID, id string, budgetCents *int64) (*models.ExpenseCategory, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceManage)
	if err != nil {
		return nil, err
	}
	if budgetCents != nil && *budgetCents < 0 {
		return nil, validationError("budget must not be negative")
	}

	c, err := s.repo.GetExpenseCategory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting expense category: %w", err)
	}
	if c == nil {
		return nil, notFound("expense category")
	}
	previous := c.BudgetCents
	c.BudgetCents = budgetCents
	if err := s.repo.UpdateExpenseCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("error updating expense category: %w", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "expense_category.budget_set",
		EntityType: "expense_category",
		EntityID:   c.ID,
		Details:    map[string]interface{}{"name": c.Name, "oldBudgetCents": previous, "newBudgetCents": budgetCents},
	})
	return c, nil
}

// BudgetReport compares each active category's approved spend in a month
// with its budget. Inactive categories appear only if they have spend.
func (s *DefaultService) BudgetReport(ctx context.Context, actorID string, year, month int) (*models.BudgetReport, error) {
	if _, err := s.authorize(ctx, actorID, models.PermFinanceManage); err != nil {
		return nil, err
	}
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}

	categories, err := s.repo.ListExpenseCategories(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("error listing expense categories: %w", err)
	}
	from, to := monthBounds(year, month)
	spent, err := s.repo.SumExpensesByCategory(ctx, from, to, spentStatuses)
	if err != nil {
		return nil, fmt.Errorf("error summing expenses: %w", err)
	}

	report := &models.BudgetReport{Year: year, Month: month, Categories: []models.CategoryBudget{}}
	for _, c := range categories {
		if !c.IsActive && spent[c.ID] == 0 {
			continue
		}
		row := evaluateBudget(c, spent[c.ID])
		report.TotalSpentCents += row.SpentCents
		if row.BudgetCents != nil {
			report.TotalBudgetCents += *row.BudgetCents
		}
		report.Categories = append(report.Categories, row)
	}
	return report, nil
}

func evaluateBudget(c models.ExpenseCategory, spentCents int64) models.CategoryBudget {
	row := models.CategoryBudget{CategoryID: c.ID, Name: c.Name, SpentCents: spentCents}
	if c.BudgetCents == nil {
		return row
	}

	budget := *c.BudgetCents
	remaining := budget - spentCents
	row.BudgetCents = &budget
	row.RemainingCents = &remaining
	row.OverBudget = spentCents > budget
	if budget > 0 {
		row.UsagePercent = math.Round(float64(spentCents)*10000/float64(budget)) / 100
	}
	return row
}

func (s *DefaultService) SubmitExpense(ctx context.Context, actorID string, req models.SubmitExpenseRequest) (*models.Expense, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceExpenseSubmit)
	if err != nil {
		return nil, err
	}
	if req.AmountCents <= 0 {
		return nil, validationError("amount must be positive")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, validationError("description is required")
	}
	if req.ExpenseDate.IsZero() {
		return nil, validationError("expense date is required")
	}
	if req.ExpenseDate.After(s.today()) {
		return nil, validationError("expense date cannot be in the future")
	}

	cat, err := s.repo.GetExpenseCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("error getting expense category: %w", err)
	}
	if cat == nil || !cat.IsActive {
		return nil, validationError("unknown expense category")
	}

	e := &models.Expense{
		UserID:      a.id(),
		CategoryID:  cat.ID,
		AmountCents: req.AmountCents,
		Description: strings.TrimSpace(req.Description),
		Vendor:      strings.TrimSpace(req.Vendor),
		ExpenseDate: req.ExpenseDate,
		Status:      models.ExpenseStatusPending,
	}
	if err := s.repo.CreateExpense(ctx, e); err != nil {
		return nil, wrapRepoError("creating expense", err)
	}

	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "expense.submitted",
		EntityType: "expense",
		EntityID:   e.ID,
		Details:    map[string]interface{}{"amountCents": e.AmountCents, "category": cat.Name},
	})
	return e, nil
}

// ListExpenses returns the caller's claims, or every claim for approvers
func (s *DefaultService) ListExpenses(ctx context.Context, actorID string, all bool) ([]models.Expense, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceView)
	if err != nil {
		return nil, err
	}
	owner := a.id()
	if all {
		if err := a.require(models.PermFinanceExpenseApprove); err != nil {
			return nil, err
		}
		owner = ""
	}
	out, err := s.repo.ListExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("error listing expenses: %w", err)
	}
	return out, nil
}

func (s *DefaultService) ApproveExpense(ctx context.Context, actorID, id string) (*models.Expense, error) {
	return s.reviewExpense(ctx, actorID, id, models.ExpenseStatusApproved, "")
}

func (s *DefaultService) RejectExpense(ctx context.Context, actorID, id, reason string) (*models.Expense, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("a rejection reason is required")
	}
	return s.reviewExpense(ctx, actorID, id, models.ExpenseStatusRejected, reason)
}

func (s *DefaultService) ReimburseExpense(ctx context.Context, actorID, id string) (*models.Expense, error) {
	return s.reviewExpense(ctx, actorID, id, models.ExpenseStatusReimbursed, "")
}

// reviewExpense moves a claim pending -> approved|rejected or
// approved -> reimbursed under a row lock.
func (s *DefaultService) reviewExpense(ctx context.Context, actorID, id, to, reason string) (*models.Expense, error) {
	a, err := s.authorize(ctx, actorID, models.PermFinanceExpenseApprove)
	if err != nil {
		return nil, err
	}

	var e *models.Expense
	err = s.repo.InTx(ctx, func(repo repository.Repository) error {
		var err error
		e, err = repo.GetExpenseForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("error getting expense: %w", err)
		}
		if e == nil {
			return notFound("expense")
		}

		from := models.ExpenseStatusPending
		if to == models.ExpenseStatusReimbursed {
			from = models.ExpenseStatusApproved
		}
		if e.Status != from {
			return invalidTransition(e.Status, to)
		}

		now := s.now()
		e.Status = to
		switch to {
		case models.ExpenseStatusApproved:
			approver := a.id()
			e.ApprovedBy = &approver
			e.ApprovedAt = &now
		case models.ExpenseStatusRejected:
			approver := a.id()
			e.ApprovedBy = &approver
			e.ApprovedAt = &now
			e.RejectionReason = reason
		case models.ExpenseStatusReimbursed:
			e.ReimbursedAt = &now
		}
		if err := repo.UpdateExpense(ctx, e); err != nil {
			return fmt.Errorf("error updating expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	details := map[string]interface{}{"status": to, "amountCents": e.AmountCents}
	if reason != "" {
		details["reason"] = reason
	}
	notifyType := "success"
	if to == models.ExpenseStatusRejected {
		notifyType = "warning"
	}
	s.emit(ctx, Event{
		ActorID:    a.id(),
		Action:     "expense." + to,
		EntityType: "expense",
		EntityID:   e.ID,
		Details:    details,
		Notify: &NotificationSpec{
			UserIDs:     []string{e.UserID},
			Title:       "Expense " + strings.ToUpper(to[:1]) + to[1:],
			Message:     fmt.Sprintf("Your expense claim of %s was %s.", formatCents(e.AmountCents), to),
			Type:        notifyType,
			RelatedID:   e.ID,
			RelatedType: "expense",
		},
	})
	return e, nil
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
