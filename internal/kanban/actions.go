package kanban

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"taskboard/api/internal/rbac"
)

const (
	KindCreateCard            = "create_card"
	KindUpdateCard            = "update_card"
	KindMoveCard              = "move_card"
	KindDeleteCard            = "delete_card"
	KindCreateColumn          = "create_column"
	KindUpdateColumn          = "update_column"
	KindMoveColumn            = "move_column"
	KindDeleteColumn          = "delete_column"
	KindCreateTag             = "create_tag"
	KindUpdateTag             = "update_tag"
	KindDeleteTag             = "delete_tag"
	KindAddTagToCard          = "add_tag_to_card"
	KindRemoveTagFromCard     = "remove_tag_from_card"
	KindAssignCardToBoard     = "assign_card_to_board"
	KindUnassignCardFromBoard = "unassign_card_from_board"
	KindMoveCardToBoard       = "move_card_to_board"
	KindCreateBoard           = "create_board"
	KindUpdateBoard           = "update_board"
	KindDeleteBoard           = "delete_board"
	KindSetPermission         = "set_permission"
	KindRemovePermission      = "remove_permission"
	KindListCards             = "list_cards"
	KindListTags              = "list_tags"
)

const (
	DefaultTagColor = "#6c757d"

	maxTitleLength = 500
	maxNameLength  = 200
	maxBodyLength  = 100_000
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

var cardStatuses = map[string]bool{"open": true, "in_progress": true, "done": true, "closed": true}

// Action is one state transition requested through REST or chat.
type Action interface {
	Kind() string
	Validate() error
	Describe() string
}

// DatePatch updates a nullable date. Set with a nil Value clears the date.
type DatePatch struct {
	Set   bool
	Value *time.Time
}

func requireText(field, value string, max int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return Validationf("%s is required", field)
	}
	if len(value) > max {
		return Validationf("%s is too long (max %d characters)", field, max)
	}
	return nil
}

func optionalText(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	return requireText(field, *value, max)
}

func checkVisibility(value string) error {
	if value == "" {
		return nil
	}
	if _, ok := rbac.ParseVisibility(value); !ok {
		return Validationf("visibility must be private, restricted or public")
	}
	return nil
}

func checkStatus(value string) error {
	if value == "" || cardStatuses[value] {
		return nil
	}
	return Validationf("status must be open, in_progress, done or closed")
}

func checkColor(value string) error {
	if value == "" || colorPattern.MatchString(value) {
		return nil
	}
	return Validationf("color must look like #rrggbb")
}

func checkDateRange(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return Validationf("end date is before start date")
	}
	return nil
}

func requireRef(what string, ref Ref) error {
	if ref.IsZero() {
		return Validationf("%s is required", what)
	}
	return nil
}

func quoted(ref Ref) string {
	return fmt.Sprintf("%q", ref.String())
}

type CreateCard struct {
	Board      Ref
	Column     Ref
	Title      string
	Body       string
	Visibility string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
	DueDate    *time.Time
	OwnerID    string
	Position   *int
}

func (a CreateCard) Kind() string { return KindCreateCard }

func (a CreateCard) Validate() error {
	if err := requireText("title", a.Title, maxTitleLength); err != nil {
		return err
	}
	if len(a.Body) > maxBodyLength {
		return Validationf("body is too long")
	}
	if err := checkVisibility(a.Visibility); err != nil {
		return err
	}
	if err := checkStatus(a.Status); err != nil {
		return err
	}
	return checkDateRange(a.StartDate, a.EndDate)
}

func (a CreateCard) Describe() string {
	if !a.Column.IsZero() {
		return fmt.Sprintf("Create card %q in column %s", a.Title, quoted(a.Column))
	}
	if !a.Board.IsZero() {
		return fmt.Sprintf("Create card %q on board %s", a.Title, quoted(a.Board))
	}
	return fmt.Sprintf("Create card %q", a.Title)
}

type UpdateCard struct {
	Card       Ref
	Board      Ref
	Title      *string
	Body       *string
	Visibility *string
	Status     *string
	StartDate  DatePatch
	EndDate    DatePatch
	DueDate    DatePatch
	// OwnerID set to "" clears the assignee.
	OwnerID *string
}

func (a UpdateCard) Kind() string { return KindUpdateCard }

func (a UpdateCard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	if err := optionalText("title", a.Title, maxTitleLength); err != nil {
		return err
	}
	if a.Body != nil && len(*a.Body) > maxBodyLength {
		return Validationf("body is too long")
	}
	if a.Visibility != nil {
		if err := checkVisibility(*a.Visibility); err != nil {
			return err
		}
	}
	if a.Status != nil {
		if err := checkStatus(*a.Status); err != nil {
			return err
		}
	}
	if a.StartDate.Set && a.EndDate.Set {
		return checkDateRange(a.StartDate.Value, a.EndDate.Value)
	}
	return nil
}

func (a UpdateCard) Describe() string {
	return fmt.Sprintf("Update card %s", quoted(a.Card))
}

// MoveCard moves a card within one board. A zero Column targets the
// unfiled bucket. AssignIfMissing turns the move into an assignment when
// the card is not on the board yet.
type MoveCard struct {
	Card            Ref
	Board           Ref
	Column          Ref
	Position        *int
	AssignIfMissing bool
}

func (a MoveCard) Kind() string { return KindMoveCard }

func (a MoveCard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	return requireRef("board", a.Board)
}

func (a MoveCard) Describe() string {
	if a.Column.IsZero() {
		return fmt.Sprintf("Move card %s to unfiled", quoted(a.Card))
	}
	return fmt.Sprintf("Move card %s to %s", quoted(a.Card), quoted(a.Column))
}

type DeleteCard struct {
	Card  Ref
	Board Ref
}

func (a DeleteCard) Kind() string { return KindDeleteCard }

func (a DeleteCard) Validate() error { return requireRef("card", a.Card) }

func (a DeleteCard) Describe() string {
	return fmt.Sprintf("Delete card %s", quoted(a.Card))
}

type CreateColumn struct {
	Board    Ref
	Name     string
	Position *int
}

func (a CreateColumn) Kind() string { return KindCreateColumn }

func (a CreateColumn) Validate() error {
	if err := requireRef("board", a.Board); err != nil {
		return err
	}
	return requireText("column name", a.Name, maxNameLength)
}

func (a CreateColumn) Describe() string {
	return fmt.Sprintf("Create column %q", a.Name)
}

type UpdateColumn struct {
	Column Ref
	Board  Ref
	Name   string
}

func (a UpdateColumn) Kind() string { return KindUpdateColumn }

func (a UpdateColumn) Validate() error {
	if err := requireRef("column", a.Column); err != nil {
		return err
	}
	return requireText("column name", a.Name, maxNameLength)
}

func (a UpdateColumn) Describe() string {
	return fmt.Sprintf("Rename column %s to %q", quoted(a.Column), a.Name)
}

type MoveColumn struct {
	Column   Ref
	Board    Ref
	Position int
}

func (a MoveColumn) Kind() string { return KindMoveColumn }

func (a MoveColumn) Validate() error {
	return requireRef("column", a.Column)
}

func (a MoveColumn) Describe() string {
	return fmt.Sprintf("Move column %s to position %d", quoted(a.Column), a.Position)
}

type DeleteColumn struct {
	Column Ref
	Board  Ref
}

func (a DeleteColumn) Kind() string { return KindDeleteColumn }

func (a DeleteColumn) Validate() error { return requireRef("column", a.Column) }

func (a DeleteColumn) Describe() string {
	return fmt.Sprintf("Delete column %s", quoted(a.Column))
}

// CreateTag creates a board tag, or a personal tag when Board is zero.
type CreateTag struct {
	Board Ref
	Name  string
	Color string
}

func (a CreateTag) Kind() string { return KindCreateTag }

func (a CreateTag) Validate() error {
	if err := requireText("tag name", a.Name, maxNameLength); err != nil {
		return err
	}
	return checkColor(a.Color)
}

func (a CreateTag) Describe() string {
	return fmt.Sprintf("Create tag %q", a.Name)
}

type UpdateTag struct {
	Tag   Ref
	Board Ref
	Name  *string
	Color *string
}

func (a UpdateTag) Kind() string { return KindUpdateTag }

func (a UpdateTag) Validate() error {
	if err := requireRef("tag", a.Tag); err != nil {
		return err
	}
	if err := optionalText("tag name", a.Name, maxNameLength); err != nil {
		return err
	}
	if a.Color != nil {
		return checkColor(*a.Color)
	}
	return nil
}

func (a UpdateTag) Describe() string {
	return fmt.Sprintf("Update tag %s", quoted(a.Tag))
}

type DeleteTag struct {
	Tag   Ref
	Board Ref
}

func (a DeleteTag) Kind() string { return KindDeleteTag }

func (a DeleteTag) Validate() error { return requireRef("tag", a.Tag) }

func (a DeleteTag) Describe() string {
	return fmt.Sprintf("Delete tag %s", quoted(a.Tag))
}

type AddTagToCard struct {
	Card  Ref
	Tag   Ref
	Board Ref
}

func (a AddTagToCard) Kind() string { return KindAddTagToCard }

func (a AddTagToCard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	return requireRef("tag", a.Tag)
}

func (a AddTagToCard) Describe() string {
	return fmt.Sprintf("Tag card %s with %s", quoted(a.Card), quoted(a.Tag))
}

type RemoveTagFromCard struct {
	Card  Ref
	Tag   Ref
	Board Ref
}

func (a RemoveTagFromCard) Kind() string { return KindRemoveTagFromCard }

func (a RemoveTagFromCard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	return requireRef("tag", a.Tag)
}

func (a RemoveTagFromCard) Describe() string {
	return fmt.Sprintf("Remove tag %s from card %s", quoted(a.Tag), quoted(a.Card))
}

type AssignCardToBoard struct {
	Card     Ref
	Board    Ref
	Column   Ref
	Position *int
}

func (a AssignCardToBoard) Kind() string { return KindAssignCardToBoard }

func (a AssignCardToBoard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	return requireRef("board", a.Board)
}

func (a AssignCardToBoard) Describe() string {
	return fmt.Sprintf("Add card %s to board %s", quoted(a.Card), quoted(a.Board))
}

type UnassignCardFromBoard struct {
	Card  Ref
	Board Ref
}

func (a UnassignCardFromBoard) Kind() string { return KindUnassignCardFromBoard }

func (a UnassignCardFromBoard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	return requireRef("board", a.Board)
}

func (a UnassignCardFromBoard) Describe() string {
	return fmt.Sprintf("Remove card %s from board %s", quoted(a.Card), quoted(a.Board))
}

// MoveCardToBoard removes a card from one board and places it on another.
type MoveCardToBoard struct {
	Card      Ref
	FromBoard Ref
	ToBoard   Ref
	Column    Ref
	Position  *int
}

func (a MoveCardToBoard) Kind() string { return KindMoveCardToBoard }

func (a MoveCardToBoard) Validate() error {
	if err := requireRef("card", a.Card); err != nil {
		return err
	}
	if err := requireRef("source board", a.FromBoard); err != nil {
		return err
	}
	return requireRef("target board", a.ToBoard)
}

func (a MoveCardToBoard) Describe() string {
	return fmt.Sprintf("Move card %s from board %s to board %s", quoted(a.Card), quoted(a.FromBoard), quoted(a.ToBoard))
}

type CreateBoard struct {
	Name        string
	Description string
	// Columns are created in order on the new board.
	Columns []string
}

func (a CreateBoard) Kind() string { return KindCreateBoard }

func (a CreateBoard) Validate() error {
	if err := requireText("board name", a.Name, maxNameLength); err != nil {
		return err
	}
	for _, name := range a.Columns {
		if err := requireText("column name", name, maxNameLength); err != nil {
			return err
		}
	}
	return nil
}

func (a CreateBoard) Describe() string {
	return fmt.Sprintf("Create board %q", a.Name)
}

type UpdateBoard struct {
	Board       Ref
	Name        *string
	Description *string
}

func (a UpdateBoard) Kind() string { return KindUpdateBoard }

func (a UpdateBoard) Validate() error {
	if err := requireRef("board", a.Board); err != nil {
		return err
	}
	return optionalText("board name", a.Name, maxNameLength)
}

func (a UpdateBoard) Describe() string {
	return fmt.Sprintf("Update board %s", quoted(a.Board))
}

type DeleteBoard struct {
	Board Ref
}

func (a DeleteBoard) Kind() string { return KindDeleteBoard }

func (a DeleteBoard) Validate() error { return requireRef("board", a.Board) }

func (a DeleteBoard) Describe() string {
	return fmt.Sprintf("Delete board %s", quoted(a.Board))
}

// SetPermission grants or changes a member's role. The user is found by id
// or, failing that, by email.
type SetPermission struct {
	Board  Ref
	UserID string
	Email  string
	Role   string
}

func (a SetPermission) Kind() string { return KindSetPermission }

func (a SetPermission) Validate() error {
	if err := requireRef("board", a.Board); err != nil {
		return err
	}
	if strings.TrimSpace(a.UserID) == "" && strings.TrimSpace(a.Email) == "" {
		return Validationf("user_id or email is required")
	}
	role, ok := rbac.ParseRole(a.Role)
	if !ok {
		return Validationf("role must be reader, editor or owner")
	}
	if role == rbac.RoleOwner {
		return Validationf("ownership cannot be granted")
	}
	return nil
}

func (a SetPermission) Describe() string {
	who := a.Email
	if who == "" {
		who = a.UserID
	}
	return fmt.Sprintf("Grant %s role %s on board %s", who, a.Role, quoted(a.Board))
}

type RemovePermission struct {
	Board  Ref
	UserID string
}

func (a RemovePermission) Kind() string { return KindRemovePermission }

func (a RemovePermission) Validate() error {
	if err := requireRef("board", a.Board); err != nil {
		return err
	}
	if strings.TrimSpace(a.UserID) == "" {
		return Validationf("user_id is required")
	}
	return nil
}

func (a RemovePermission) Describe() string {
	return fmt.Sprintf("Remove %s from board %s", a.UserID, quoted(a.Board))
}

// ListCards reads the visible cards of a board, optionally one column.
type ListCards struct {
	Board  Ref
	Column Ref
}

func (a ListCards) Kind() string { return KindListCards }

func (a ListCards) Validate() error { return requireRef("board", a.Board) }

func (a ListCards) Describe() string {
	if a.Column.IsZero() {
		return fmt.Sprintf("List cards on board %s", quoted(a.Board))
	}
	return fmt.Sprintf("List cards in column %s", quoted(a.Column))
}

// ListTags reads board tags plus the actor's personal tags.
type ListTags struct {
	Board Ref
}

func (a ListTags) Kind() string { return KindListTags }

func (a ListTags) Validate() error { return nil }

func (a ListTags) Describe() string {
	if a.Board.IsZero() {
		return "List tags"
	}
	return fmt.Sprintf("List tags on board %s", quoted(a.Board))
}
