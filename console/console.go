// Package console is the interactive menu for building a field, adding cars
// and running the simulation from a terminal.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/autodrive/sim/engine"
	"github.com/wricardo/mcp-training/autodrive/sim/render"
)

const (
	welcome    = "Welcome to Auto Driving Car Simulation!"
	goodbye    = "Thank you for running the simulation. Goodbye!"
	invalidDir = "Invalid direction. Only N, E, S, W are allowed."
	invalidCmd = "Invalid commands. Only L, R, F are allowed."
	noCars     = "No cars added to the simulation. Please add at least one car."
)

// errQuit ends the session when input is exhausted or the user exits
var errQuit = errors.New("quit")

// Console runs the menu over an input stream and an output writer
type Console struct {
	in  *bufio.Scanner
	out io.Writer
	log *zap.SugaredLogger
}

// New creates a console reading from in and writing to out
func New(in io.Reader, out io.Writer, log *zap.SugaredLogger) *Console {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Console{
		in:  bufio.NewScanner(in),
		out: out,
		log: log,
	}
}

// Run plays sessions until the user exits or input ends. Choosing "Start over"
// begins a new session with a new field.
func (c *Console) Run() error {
	for {
		again, err := c.session()
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return err
		}
		if !again {
			return nil
		}
	}
}

// session runs one field from creation to the post-run menu and reports
// whether the user chose to start over
func (c *Console) session() (bool, error) {
	c.println(welcome)

	field, err := c.readField()
	if err != nil {
		return false, err
	}
	c.printf("You have created a field of %s.\n", field)

	scenario := &engine.Scenario{Name: "console", Field: field}

	for {
		c.printf("\nPlease choose from the following options:\n[1] Add a car to field\n[2] Run simulation\n")

		choice, err := c.readLine("")
		if err != nil {
			return false, err
		}

		switch choice {
		case "1":
			if err := c.addCar(scenario); err != nil {
				return false, err
			}
		case "2":
			if len(scenario.Vehicles) == 0 {
				c.println(noCars)
				continue
			}
			if err := c.runSimulation(scenario); err != nil {
				return false, err
			}
			return c.afterRun()
		default:
			c.println("Invalid choice. Please try again.")
		}
	}
}

func (c *Console) readField() (engine.Field, error) {
	for {
		line, err := c.readLine("Please enter the width and height of the simulation field in x y format: ")
		if err != nil {
			return engine.Field{}, err
		}

		parts := strings.Fields(line)
		if len(parts) != 2 {
			c.println("Invalid field size. Please enter two integers, for example: 10 10")
			continue
		}
		width, errW := strconv.Atoi(parts[0])
		height, errH := strconv.Atoi(parts[1])
		if errW != nil || errH != nil {
			c.println("Invalid field size. Please enter two integers, for example: 10 10")
			continue
		}
		if width < engine.MinFieldSize || width > engine.MaxFieldSize ||
			height < engine.MinFieldSize || height > engine.MaxFieldSize {
			c.printf("Invalid field size. Width and height must be between %d and %d.\n",
				engine.MinFieldSize, engine.MaxFieldSize)
			continue
		}

		return engine.Field{Width: width, Height: height}, nil
	}
}

// addCar reads one car definition. Invalid input returns to the main menu
// without adding anything.
func (c *Console) addCar(scenario *engine.Scenario) error {
	name, err := c.readLine("Please enter the name of the car: ")
	if err != nil {
		return err
	}
	if name == "" {
		c.println("Invalid name. The car name cannot be empty.")
		return nil
	}
	for _, existing := range scenario.Vehicles {
		if existing.Name == name {
			c.printf("Invalid name. A car named %s already exists.\n", name)
			return nil
		}
	}

	line, err := c.readLine(fmt.Sprintf("Please enter initial position of car %s in x y Direction format: ", name))
	if err != nil {
		return err
	}
	parts := strings.Fields(line)
	if len(parts) != 3 {
		c.println("Invalid position. Please enter two integers and a direction, for example: 1 2 N")
		return nil
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	if errX != nil || errY != nil {
		c.println("Invalid position. Please enter two integers and a direction, for example: 1 2 N")
		return nil
	}
	if _, err := engine.ParseHeading(parts[2]); err != nil {
		c.println(invalidDir)
		return nil
	}
	if !scenario.Field.Contains(engine.Position{X: x, Y: y}) {
		c.printf("Invalid position. (%d,%d) is outside the field of %s.\n", x, y, scenario.Field)
		return nil
	}

	commands, err := c.readLine(fmt.Sprintf("Please enter the commands for car %s: ", name))
	if err != nil {
		return err
	}

	spec := engine.VehicleSpec{Name: name, X: x, Y: y, Direction: parts[2], Commands: commands}.Normalize()
	if err := engine.ValidateCommands(spec.Commands); err != nil {
		c.log.Debugw("rejected commands", "car", name, "error", err)
		c.println(invalidCmd)
		return nil
	}

	scenario.Vehicles = append(scenario.Vehicles, spec)
	c.log.Debugw("car added", "car", spec.String())

	c.printf("\n%s", render.VehicleList(scenario.Vehicles))
	return nil
}

func (c *Console) runSimulation(scenario *engine.Scenario) error {
	c.printf("\n%s", render.VehicleList(scenario.Vehicles))

	eng, err := scenario.NewEngine()
	if err != nil {
		return err
	}

	reporter := render.NewTextReporter(c.out)
	eng.AddObserver(reporter)

	result, err := eng.Run()
	if err != nil {
		return err
	}
	reporter.Final(result.Final)

	c.log.Debugw("simulation finished",
		"ticks", len(result.Ticks),
		"collisions", len(result.Collisions),
		"survivors", result.Survivors())
	return nil
}

func (c *Console) afterRun() (bool, error) {
	for {
		c.printf("\nPlease choose from the following options:\n[1] Start over\n[2] Exit\n")

		choice, err := c.readLine("")
		if err != nil {
			return false, err
		}

		switch choice {
		case "1":
			return true, nil
		case "2":
			c.println(goodbye)
			return false, nil
		default:
			c.println("Invalid choice. Please try again.")
		}
	}
}

// readLine prints prompt and returns the next trimmed input line. It returns
// errQuit once input is exhausted.
func (c *Console) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return "", errQuit
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
