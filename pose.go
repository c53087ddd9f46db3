package fingerforce

import "fmt"

// HomePose is the resting configuration of the arm and hand joints, in degrees.
// Arm values start at joint 0 and hand values at HandOffset.
type HomePose struct {
	Arm        []float64
	Hand       []float64
	HandOffset int
}

// Value returns the home value of a joint, if the pose covers it.
func (h HomePose) Value(joint int) (float64, bool) {
	if i := joint - h.HandOffset; i >= 0 && i < len(h.Hand) {
		return h.Hand[i], true
	}
	if joint >= 0 && joint < len(h.Arm) {
		return h.Arm[joint], true
	}
	return 0, false
}

// applyArm overwrites the arm joints of positions with the home pose.
func (h HomePose) applyArm(positions []float64) {
	copy(positions, h.Arm)
}

// applyHand overwrites the hand joints of positions with the home pose.
func (h HomePose) applyHand(positions []float64) {
	if h.HandOffset < len(positions) {
		copy(positions[h.HandOffset:], h.Hand)
	}
}

// check verifies the pose fits in a gateway with jointCount joints.
func (h HomePose) check(jointCount int) error {
	if len(h.Hand) == 0 {
		return fmt.Errorf("home pose has no hand joints")
	}
	if len(h.Arm) > jointCount {
		return fmt.Errorf("home arm pose has %d joints, gateway has %d", len(h.Arm), jointCount)
	}
	if h.HandOffset+len(h.Hand) > jointCount {
		return fmt.Errorf("home hand pose covers joints %d..%d, gateway has %d",
			h.HandOffset, h.HandOffset+len(h.Hand)-1, jointCount)
	}
	return nil
}
