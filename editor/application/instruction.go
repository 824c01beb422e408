package application

// DefaultInstruction is the fixed text sent along with every image.
const DefaultInstruction = `Task: turn the input image into a photorealistic mobile phone photo of an old laminated ID card.

Geometry: the card is perfectly straight and rectified, seen from the top. Do not tilt or rotate it.

Material: the lamination is old and slightly wavy, with scuffs, fine scratches and swirl marks on the plastic.
The paper grain shows beneath the plastic. The plastic is slightly yellowed, with air pockets or peeling at the corners and a visible sealed edge.

Camera: realistic indoor light with a subtle phone flash. The flash hotspot sits in the bottom-left or the center;
the upper-right area stays free of glare so its details remain readable. Add the ISO noise of an indoor phone photo.

Environment: the card lies on a dark wooden table with clearly visible grain, tightly cropped with a little table visible at the edges.

Output: a single photorealistic image.`
