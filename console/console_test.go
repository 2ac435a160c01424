package console

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runConsole(t *testing.T, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, New(strings.NewReader(input), &out, nil).Run())
	return out.String()
}

const mainMenu = "\nPlease choose from the following options:\n[1] Add a car to field\n[2] Run simulation\n"

func TestConsole_SingleCarTranscript(t *testing.T) {
	out := runConsole(t, "2 2\n1\nA\n0 0 N\nF\n2\n2\n")

	expected := "Welcome to Auto Driving Car Simulation!\n" +
		"Please enter the width and height of the simulation field in x y format: " +
		"You have created a field of 2 x 2.\n" +
		mainMenu +
		"Please enter the name of the car: " +
		"Please enter initial position of car A in x y Direction format: " +
		"Please enter the commands for car A: " +
		"\nYour current list of cars are:\n- A, (0,0) N, F\n" +
		mainMenu +
		"\nYour current list of cars are:\n- A, (0,0) N, F\n" +
		"\nSimulation Field:\n▲ .\n. .\n" +
		"After simulation, the result is:\n- A, (0,1) N\n" +
		"\nPlease choose from the following options:\n[1] Start over\n[2] Exit\n" +
		"Thank you for running the simulation. Goodbye!\n"

	assert.Equal(t, expected, out)
}

func TestConsole_DefaultScenarioCollision(t *testing.T) {
	input := "10 10\n" +
		"1\nA\n1 2 N\nFFRFFFFRRL\n" +
		"1\nB\n7 8 W\nFFLFFFFFFF\n" +
		"2\n2\n"
	out := runConsole(t, input)

	assert.Contains(t, out, "- A, (1,2) N, FFRFFFFRRL\n- B, (7,8) W, FFLFFFFFFF\n")
	assert.Contains(t, out, "Collision detected: B collides with A at (5,4) at step 7\n"+
		"Collision detected: A collides with B at (5,4) at step 7\n")
	assert.Contains(t, out, "After simulation, the result is:\n- A, (5,4) E\n- B, (5,4) S\n")
	assert.Equal(t, 10, strings.Count(out, "Simulation Field:"))
}

func TestConsole_InputValidation(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"malformed field", "ten ten\n3 3\n", "Invalid field size. Please enter two integers"},
		{"field too small", "0 3\n3 3\n", "Width and height must be between 1 and 100."},
		{"invalid direction", "3 3\n1\nA\n0 0 Q\n", "Invalid direction. Only N, E, S, W are allowed."},
		{"invalid commands", "3 3\n1\nA\n0 0 N\nFXF\n", "Invalid commands. Only L, R, F are allowed."},
		{"out of bounds", "3 3\n1\nA\n5 0 N\n", "Invalid position. (5,0) is outside the field of 3 x 3."},
		{"malformed position", "3 3\n1\nA\n0 N\n", "Invalid position. Please enter two integers and a direction"},
		{"empty name", "3 3\n1\n\n", "Invalid name. The car name cannot be empty."},
		{"duplicate name", "3 3\n1\nA\n0 0 N\nF\n1\nA\n", "Invalid name. A car named A already exists."},
		{"no cars", "3 3\n2\n", "No cars added to the simulation. Please add at least one car."},
		{"invalid menu choice", "3 3\n9\n", "Invalid choice. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, runConsole(t, tt.input), tt.contains)
		})
	}
}

func TestConsole_InvalidCarReturnsToMenu(t *testing.T) {
	out := runConsole(t, "3 3\n1\nA\n0 0 Q\n2\n")

	assert.Contains(t, out, "Invalid direction. Only N, E, S, W are allowed.\n"+mainMenu)
	assert.Contains(t, out, "No cars added to the simulation.")
}

func TestConsole_LowercaseInputIsNormalized(t *testing.T) {
	out := runConsole(t, "3 3\n1\nA\n0 0 e\nfl\n")

	assert.Contains(t, out, "- A, (0,0) E, FL\n")
}

func TestConsole_StartOver(t *testing.T) {
	out := runConsole(t, "2 2\n1\nA\n0 0 N\nF\n2\n3\n1\n4 4\n2\n")

	assert.Equal(t, 2, strings.Count(out, "Welcome to Auto Driving Car Simulation!"))
	assert.Contains(t, out, "You have created a field of 4 x 4.")
	assert.Contains(t, out, "[2] Exit\nInvalid choice. Please try again.\n")
	assert.NotContains(t, out, "Goodbye")
}

func TestConsole_EOFEndsCleanly(t *testing.T) {
	for _, input := range []string{"", "3 3\n", "3 3\n1\nA\n"} {
		var out bytes.Buffer
		err := New(strings.NewReader(input), &out, nil).Run()
		assert.NoError(t, err, "input %q", input)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestConsole_ReadError(t *testing.T) {
	var out bytes.Buffer
	err := New(failingReader{}, &out, nil).Run()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
