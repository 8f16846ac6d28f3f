package descriptor

// PatternStrengthIndex is the position of pattern strength inside the pattern block.
const PatternStrengthIndex = directionalCount + 4 + 2

// PatternBlock computes the compact pattern block: directional stats (6),
// GLCM contrast, homogeneity, energy and correlation (4), repetition max,
// quilting max and pattern strength (3).
func PatternBlock(g *grayPlane, length int) FeatureBlock {
	return patternBlock(analyzeTexture(g), length)
}

func patternBlock(t *textureAnalysis, length int) FeatureBlock {
	w := newBlockWriter(length)
	if t.textured == 0 {
		return w.block(BlockPattern)
	}
	var quilt float64
	for _, q := range t.quilting {
		quilt = max(quilt, q)
	}
	w.add(t.directional[:]...)
	w.add(t.contrast, t.homogeneity, t.energy, t.correlation)
	w.add(t.repetitionMax, quilt, t.patternStrength)
	return w.block(BlockPattern)
}
