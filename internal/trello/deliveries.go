package trello

import (
	"context"
	"regexp"
	"strings"
	"time"
)

const (
	unknownCustomer = "Okänd kund"
	unknownList     = "Okänd status"
	unknownStatus   = "Okänd"

	descriptionLimit = 200
)

var statusLabels = map[string]bool{
	"nybeställning": true,
	"beställd":      true,
	"begagnad":      true,
	"bokat&klart":   true,
}

// Free-text heuristics over card descriptions. Best effort only.
var (
	modelLabeled   = regexp.MustCompile(`(?i)modell[:\s]*(.*?)(?:\n|$)`)
	modelBrand     = regexp.MustCompile(`(?i)(epson|ricoh|canon|hp|brother)[\s\w-]*`)
	addressLabeled = regexp.MustCompile(`(?i)(?:leveransadress|adress)[:\s]*(.*?)(?:\n|$)`)
	addressStreet  = regexp.MustCompile(`[A-ZÅÄÖ][a-zåäöA-Z\s]+\s\d+`)
	sellerLabeled  = regexp.MustCompile(`(?i)(?:säljare|ansvarig)[:\s]*(.*?)(?:\n|$)`)
	emailPattern   = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	phoneLabeled   = regexp.MustCompile(`(?i)(?:tel|telefon)[:\s]*([+\d\s-]+)`)
	phoneBare      = regexp.MustCompile(`\b\d{2,4}[-\s]?\d{6,8}\b`)
	datePattern    = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}|\d{1,2}\s\w+)`)
)

// Delivery is one row of the delivery status view.
type Delivery struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Company      string `json:"company"`
	Model        string `json:"model"`
	Address      string `json:"address"`
	Status       string `json:"status"`
	Priority     string `json:"priority"`
	DesiredDate  string `json:"desired_date"`
	Seller       string `json:"seller"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Description  string `json:"description"`
	ListName     string `json:"list_name"`
	TrelloURL    string `json:"trello_url"`
	LastActivity string `json:"last_activity"`
}

// Service turns the board into deliveries.
type Service struct {
	client *Client
	loc    *time.Location
}

func NewService(client *Client, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{client: client, loc: loc}
}

// Deliveries fetches the board and transforms its cards.
func (s *Service) Deliveries(ctx context.Context) ([]Delivery, error) {
	cards, lists, err := s.client.Board(ctx)
	if err != nil {
		return nil, err
	}
	return ToDeliveries(cards, lists, s.loc), nil
}

// ToDeliveries maps cards to deliveries. Cards without a name are dropped.
func ToDeliveries(cards []Card, lists []List, loc *time.Location) []Delivery {
	listNames := make(map[string]string, len(lists))
	for _, l := range lists {
		listNames[l.ID] = l.Name
	}

	deliveries := make([]Delivery, 0, len(cards))
	for _, card := range cards {
		d := toDelivery(card, listNames, loc)
		if d.Customer == unknownCustomer {
			continue
		}
		deliveries = append(deliveries, d)
	}
	return deliveries
}

func toDelivery(card Card, listNames map[string]string, loc *time.Location) Delivery {
	customer := card.Name
	if customer == "" {
		customer = unknownCustomer
	}
	listName, ok := listNames[card.IDList]
	if !ok {
		listName = unknownList
	}

	status := unknownStatus
	for _, l := range card.Labels {
		if statusLabels[strings.ToLower(l.Name)] {
			status = l.Name
			break
		}
	}
	priority := ""
	if len(card.Labels) > 0 {
		priority = card.Labels[0].Name
	}

	desc := card.Desc

	seller := firstGroup(sellerLabeled, desc)
	if seller == "" && len(card.Members) > 0 {
		seller = card.Members[0].FullName
	}

	desired := ""
	if card.Due != nil {
		desired = card.Due.In(loc).Format("2006-01-02")
	} else {
		desired = datePattern.FindString(desc)
	}

	return Delivery{
		ID:           card.ID,
		Customer:     customer,
		Company:      customer,
		Model:        strings.TrimSpace(labeledOr(modelLabeled, modelBrand, desc, true)),
		Address:      strings.TrimSpace(labeledOr(addressLabeled, addressStreet, desc, false)),
		Status:       status,
		Priority:     priority,
		DesiredDate:  desired,
		Seller:       strings.TrimSpace(seller),
		Email:        strings.TrimSpace(emailPattern.FindString(desc)),
		Phone:        strings.TrimSpace(labeledOr(phoneLabeled, phoneBare, desc, false)),
		Description:  truncate(desc, descriptionLimit),
		ListName:     listName,
		TrelloURL:    card.ShortURL,
		LastActivity: card.DateLastActivity,
	}
}

// labeledOr tries the labeled pattern first and falls back to the bare one.
// When useGroup is set the fallback's first group is used instead of the whole match.
func labeledOr(labeled, fallback *regexp.Regexp, text string, useGroup bool) string {
	if m := labeled.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	m := fallback.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if useGroup && len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}

func firstGroup(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
