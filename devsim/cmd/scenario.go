package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sarchlab/devs/examples/queueservice"
	"github.com/sarchlab/devs/examples/twospeed"
	"github.com/sarchlab/devs/sim"
	"gopkg.in/yaml.v3"
)

// Model types a scenario can create.
const (
	modelTwoSpeed  = "twospeed"
	modelCounter   = "counter"
	modelGenerator = "generator"
)

// CustomerSpec describes a customer of a queue service.
type CustomerSpec struct {
	ID          string  `yaml:"id"`
	ServiceTime float64 `yaml:"service_time"`
	At          float64 `yaml:"at"`
}

// ModelSpec describes one model of a scenario.
type ModelSpec struct {
	URI  string `yaml:"uri"`
	Type string `yaml:"type"`

	// twospeed
	LowPower    float64 `yaml:"low_power"`
	HighPower   float64 `yaml:"high_power"`
	InitialMode string  `yaml:"initial_mode"`

	// generator, or the customers already in line for a counter
	Customers []CustomerSpec `yaml:"customers"`
}

// CouplingSpec sends the events of a kind produced by a source model to the
// destinations.
type CouplingSpec struct {
	Source       string   `yaml:"source"`
	Kind         string   `yaml:"kind"`
	Destinations []string `yaml:"destinations"`
}

// EventSpec is an event delivered to a model before the run starts.
type EventSpec struct {
	Model    string        `yaml:"model"`
	Kind     string        `yaml:"kind"`
	At       float64       `yaml:"at"`
	Customer *CustomerSpec `yaml:"customer"`
}

// Scenario is the content of a scenario file.
type Scenario struct {
	Name      string         `yaml:"name"`
	Models    []ModelSpec    `yaml:"models"`
	Couplings []CouplingSpec `yaml:"couplings"`
	Events    []EventSpec    `yaml:"events"`
	Samples   []float64      `yaml:"samples"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	return ParseScenario(bytes.NewReader(data))
}

// ParseScenario decodes a scenario. Unknown fields are rejected so that a
// typo does not silently drop a setting.
func ParseScenario(r io.Reader) (*Scenario, error) {
	s := &Scenario{}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if len(s.Models) == 0 {
		return nil, fmt.Errorf("scenario %q has no models", s.Name)
	}

	return s, nil
}

var kindsByName = func() map[string]*sim.EventKind {
	kinds := map[string]*sim.EventKind{}

	all := append(twospeed.Kinds(), queueservice.Kinds()...)
	all = append(all, queueservice.NextArrival)

	for _, k := range all {
		kinds[k.Name()] = k
	}

	return kinds
}()

// KindNames returns the names of the event kinds scenarios can use.
func KindNames() []string {
	names := make([]string, 0, len(kindsByName))
	for name := range kindsByName {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func lookupKind(name string) (*sim.EventKind, error) {
	k, found := kindsByName[name]
	if !found {
		return nil, fmt.Errorf("unknown event kind %q", name)
	}

	return k, nil
}

func (c CustomerSpec) customer() queueservice.Customer {
	return queueservice.Customer{
		ID:          c.ID,
		ServiceTime: sim.VTimeInSec(c.ServiceTime),
	}
}

// World is a scenario turned into models registered on an exchange.
type World struct {
	Scenario *Scenario
	Exchange *sim.Exchange

	// Initial maps model URIs to the events scheduled before the run, in
	// scenario order.
	Initial *sim.Routing
}

// Build creates the models, couples them and prepares the initial events.
func (s *Scenario) Build() (*World, error) {
	w := &World{
		Scenario: s,
		Exchange: sim.NewExchange(),
		Initial:  sim.NewRouting(),
	}

	for _, spec := range s.Models {
		if err := w.addModel(spec); err != nil {
			return nil, err
		}
	}

	for _, c := range s.Couplings {
		kind, err := lookupKind(c.Kind)
		if err != nil {
			return nil, err
		}

		err = w.Exchange.Couple(c.Source, kind, c.Destinations...)
		if err != nil {
			return nil, fmt.Errorf("coupling %s from %s: %w", c.Kind, c.Source, err)
		}
	}

	for _, e := range s.Events {
		evt, err := e.event()
		if err != nil {
			return nil, err
		}

		if err := w.Initial.Add(e.Model, evt); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *World) addModel(spec ModelSpec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model %q: %v", spec.URI, r)
		}
	}()

	var m sim.AtomicModel

	switch spec.Type {
	case modelTwoSpeed:
		m = w.buildAppliance(spec)
	case modelCounter:
		c := w.buildCounter(spec)
		if first := c.FirstEvent(); first != nil {
			if err := w.Initial.Add(spec.URI, first); err != nil {
				return err
			}
		}

		m = c
	case modelGenerator:
		g := w.buildGenerator(spec)
		if first := g.FirstEvent(); first != nil {
			if err := w.Initial.Add(spec.URI, first); err != nil {
				return err
			}
		}

		m = g
	default:
		return fmt.Errorf("model %q has unknown type %q", spec.URI, spec.Type)
	}

	return w.Exchange.Register(m)
}

func (w *World) buildAppliance(spec ModelSpec) *twospeed.Appliance {
	b := twospeed.MakeBuilder()

	if spec.LowPower != 0 || spec.HighPower != 0 {
		b = b.WithPowers(spec.LowPower, spec.HighPower)
	}

	if spec.InitialMode != "" {
		b = b.WithInitialMode(sim.Mode(spec.InitialMode))
	}

	return b.Build(spec.URI)
}

func (w *World) buildCounter(spec ModelSpec) *queueservice.Counter {
	waiting := make([]queueservice.Customer, 0, len(spec.Customers))
	for _, c := range spec.Customers {
		waiting = append(waiting, c.customer())
	}

	return queueservice.MakeBuilder().
		WithWaiting(waiting...).
		Build(spec.URI)
}

func (w *World) buildGenerator(spec ModelSpec) *queueservice.Generator {
	schedule := make([]queueservice.ScheduledCustomer, 0, len(spec.Customers))
	for _, c := range spec.Customers {
		schedule = append(schedule, queueservice.ScheduledCustomer{
			At:       sim.VTimeInSec(c.At),
			Customer: c.customer(),
		})
	}

	return queueservice.NewGenerator(spec.URI, schedule)
}

func (e EventSpec) event() (*sim.Event, error) {
	kind, err := lookupKind(e.Kind)
	if err != nil {
		return nil, err
	}

	var payload sim.EventInformation
	if e.Customer != nil {
		payload = e.Customer.customer()
	}

	evt, err := sim.NewEvent(kind, sim.VTimeInSec(e.At), payload)
	if err != nil {
		return nil, fmt.Errorf("event %s for %s: %w", e.Kind, e.Model, err)
	}

	return evt, nil
}
