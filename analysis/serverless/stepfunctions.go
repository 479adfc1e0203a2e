// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serverless

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/awslabs/cloudflow-go/analysis/model"
	"gopkg.in/yaml.v3"
)

// taskFunction extracts the function name of a task resource deployed by the framework: the functions of a
// service are named <service>-<stage>-<function>
var taskFunction = regexp.MustCompile(`-(\w+)$`)

// StateMachine is a state machine of the step functions plugin
type StateMachine struct {
	Name    string
	StartAt string
	States  map[string]*State
}

// State is a state of a state machine definition
type State struct {
	Name string
	Type string

	// Handler is the name of the function of a task state, if it is a function of the descriptor
	Handler string

	// Next are the names of the states following this one
	Next []string
}

// StateResource returns the resource identifier of the transitions to the state of the machine
func StateResource(machine string, state string) string {
	return machine + "/" + state
}

// startTasks returns the task states that run first when the machine starts
func (m *StateMachine) startTasks() []string {
	return m.tasksFrom([]string{m.StartAt})
}

// nextTasks returns the task states that can run right after the state
func (m *StateMachine) nextTasks(state string) []string {
	s := m.States[state]
	if s == nil {
		return nil
	}
	return m.tasksFrom(s.Next)
}

// tasksFrom returns the task states reachable from the states without going through another task
func (m *StateMachine) tasksFrom(states []string) []string {
	seen := map[string]bool{}
	var tasks []string
	queue := append([]string(nil), states...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		s := m.States[name]
		if s == nil || seen[name] {
			continue
		}
		seen[name] = true
		if s.Type == "Task" {
			tasks = append(tasks, name)
			continue
		}
		queue = append(queue, s.Next...)
	}
	sort.Strings(tasks)
	return tasks
}

// parseStateMachines reads the state machines and adds their bindings to the handlers of their tasks. A task gets
// an input binding for the transitions to its state, and an output binding to the states that follow it, carrying
// its return value. The tasks run first also get an input binding for the executions of the machine, and the input
// bindings of the events of the machine.
func (d *Descriptor) parseStateMachines(machines map[string]*rawStateMachine) {
	keys := make([]string, 0, len(machines))
	for k := range machines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := machines[key]
		if raw == nil {
			continue
		}
		m := &StateMachine{Name: raw.Name, StartAt: raw.Definition.StartAt, States: map[string]*State{}}
		if m.Name == "" {
			m.Name = key
		}
		for name, rs := range raw.Definition.States {
			if rs == nil {
				continue
			}
			s := &State{Name: name, Type: rs.Type, Next: rs.successors()}
			if s.Type == "Task" {
				s.Handler = d.taskHandler(rs)
			}
			m.States[name] = s
		}
		d.StateMachines = append(d.StateMachines, m)
		d.bindStateMachine(m, raw.Events)
	}
}

func (d *Descriptor) bindStateMachine(m *StateMachine, events []yaml.Node) {
	names := make([]string, 0, len(m.States))
	for name := range m.States {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := m.States[name]
		h := d.Handler(s.Handler)
		if h == nil {
			continue
		}
		h.Bindings = append(h.Bindings, model.Binding{
			ID:        fmt.Sprintf("states-%s-%s", m.Name, name),
			Kind:      model.KindStates,
			Resource:  StateResource(m.Name, name),
			Direction: model.Input,
		})
		for _, next := range m.nextTasks(name) {
			h.Bindings = append(h.Bindings, model.Binding{
				ID:         fmt.Sprintf("next-%s-%s", m.Name, next),
				Kind:       model.KindStates,
				Resource:   StateResource(m.Name, next),
				Direction:  model.Output,
				FromReturn: true,
			})
		}
	}
	for _, name := range m.startTasks() {
		h := d.Handler(m.States[name].Handler)
		if h == nil {
			continue
		}
		h.Bindings = append(h.Bindings, model.Binding{
			ID:        "states-" + m.Name,
			Kind:      model.KindStates,
			Resource:  m.Name,
			Direction: model.Input,
		})
		for i := range events {
			id := fmt.Sprintf("%s-%s-%d", m.Name, eventKey(&events[i]), i)
			if b, ok := d.event(id, &events[i]); ok {
				h.Bindings = append(h.Bindings, b)
			}
		}
	}
}

// taskHandler returns the name of the function of the descriptor a task state runs, or "" if the task runs
// something else. Tasks designate functions by ARN, by Fn::GetAtt of the function's logical identifier, or through
// the FunctionName parameter of the lambda:invoke integration.
func (d *Descriptor) taskHandler(s *rawState) string {
	resource := &s.Resource
	if fn := child(&s.Parameters, "FunctionName"); fn != nil {
		resource = fn
	}
	if id, ok := getAttID(resource); ok {
		for _, h := range d.Handlers {
			if logicalID(h.Name) == id {
				return h.Name
			}
		}
		return ""
	}
	if resource.Kind != yaml.ScalarNode {
		return ""
	}
	if h := d.Handler(resource.Value); h != nil {
		return h.Name
	}
	arn := strings.TrimSuffix(resource.Value, ":$LATEST")
	if m := taskFunction.FindStringSubmatch(arn); m != nil {
		if h := d.Handler(m[1]); h != nil {
			return h.Name
		}
	}
	// Function names with dashes
	best := ""
	for _, h := range d.Handlers {
		if strings.HasSuffix(arn, "-"+h.Name) && len(h.Name) > len(best) {
			best = h.Name
		}
	}
	return best
}

// logicalID returns the identifier of the template resource of a function: hello-world is
// HelloDashworldLambdaFunction
func logicalID(function string) string {
	if function == "" {
		return ""
	}
	n := strings.ToUpper(function[:1]) + function[1:]
	n = strings.ReplaceAll(n, "-", "Dash")
	n = strings.ReplaceAll(n, "_", "Underscore")
	return n + "LambdaFunction"
}

type rawStateMachine struct {
	Name       string      `yaml:"name"`
	Events     []yaml.Node `yaml:"events"`
	Definition struct {
		StartAt string               `yaml:"StartAt"`
		States  map[string]*rawState `yaml:"States"`
	} `yaml:"definition"`
}

type rawState struct {
	Type       string    `yaml:"Type"`
	Resource   yaml.Node `yaml:"Resource"`
	Parameters yaml.Node `yaml:"Parameters"`
	Next       string    `yaml:"Next"`
	Default    string    `yaml:"Default"`
	Choices    []struct {
		Next string `yaml:"Next"`
	} `yaml:"Choices"`
}

func (s *rawState) successors() []string {
	var r []string
	if s.Next != "" {
		r = append(r, s.Next)
	}
	for _, c := range s.Choices {
		if c.Next != "" {
			r = append(r, c.Next)
		}
	}
	if s.Default != "" {
		r = append(r, s.Default)
	}
	return r
}
